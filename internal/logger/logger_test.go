package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriterJSON(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	l := SetupWriter(&buf)
	l.Debug("probe", "k", "v")

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "probe", m["msg"])
	assert.Equal(t, "v", m["k"])
	assert.Same(t, l, L())
}

func TestAccessMiddlewareRecordsStatus(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")
	var buf bytes.Buffer
	l := SetupWriter(&buf)
	h := AccessMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("nope"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/feed?country=US", nil))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "http_access", m["msg"])
	assert.Equal(t, "WARN", m["level"])
	assert.EqualValues(t, 502, m["status"])
	assert.EqualValues(t, 4, m["bytes"])
	assert.Equal(t, "country=US", m["query"])
}
