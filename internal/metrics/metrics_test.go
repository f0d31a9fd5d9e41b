package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserveLookup(t *testing.T) {
	ObserveLookup("probe", time.Now(), "")
	ObserveLookup("probe", time.Now(), "parse_failure")

	body := scrape(t)
	assert.Contains(t, body, `threatintel_provider_requests_total{provider="probe"} 2`)
	assert.Contains(t, body, `threatintel_provider_success_total{provider="probe"} 1`)
	assert.Contains(t, body, `threatintel_provider_fail_total{kind="parse_failure",provider="probe"} 1`)
}
