package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"threat-intel/internal/feed"
	"threat-intel/internal/geocode"
	"threat-intel/internal/intel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReporter struct{ ips []string }

func (f *fakeReporter) FullReport(ctx context.Context, ip string) intel.IPReport {
	f.ips = append(f.ips, ip)
	return intel.IPReport{IP: ip, GeoError: "IPINFO_TOKEN not set"}
}

type fakeFeed struct {
	table   *feed.Table
	err     error
	fetches int
	clears  int
}

func (f *fakeFeed) FetchBlocklist(ctx context.Context, useCache bool) (*feed.Table, error) {
	f.fetches++
	return f.table, f.err
}

func (f *fakeFeed) ClearCache() error {
	f.clears++
	return nil
}

type fakeGeocoder struct {
	mu    sync.Mutex
	ips   []string
	limit int
}

func (f *fakeGeocoder) GeocodeSubset(ctx context.Context, ips []string, limit int) []intel.GeoRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ips, f.limit = ips, limit
	lat, lon := intel.ParseLoc("48.85,2.35")
	return []intel.GeoRecord{{IP: ips[0], Country: "FR", Lat: lat, Lon: lon, Provider: "ipinfo"}}
}

func sampleTable(t *testing.T) *feed.Table {
	t.Helper()
	tbl, err := feed.Parse([]byte(`{"data":[
		{"ip_address":"51.75.159.178","port":443,"country":"FR","as_name":"OVH SAS"},
		{"ip_address":"162.243.103.246","port":8080,"country":"US","as_name":"DIGITALOCEAN-ASN"}
	]}`), feed.FormatJSON)
	require.NoError(t, err)
	return tbl
}

func do(t *testing.T, mux http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestReportUsesQueryThenHeaders(t *testing.T) {
	rep := &fakeReporter{}
	mux := BuildRoutes(Deps{Reporter: rep, Feed: &fakeFeed{}, Geocoder: &fakeGeocoder{}})

	rec := do(t, mux, http.MethodGet, "/report?ip=8.8.8.8", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "8.8.8.8", body["ip"])
	assert.Equal(t, "IPINFO_TOKEN not set", body["geo_error"])
	assert.NotContains(t, body, "rep_error")

	do(t, mux, http.MethodGet, "/report", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"})
	assert.Equal(t, []string{"8.8.8.8", "203.0.113.7"}, rep.ips)
}

func TestFeedFilterAndLimit(t *testing.T) {
	src := &fakeFeed{table: sampleTable(t)}
	mux := BuildRoutes(Deps{Reporter: &fakeReporter{}, Feed: src, Geocoder: &fakeGeocoder{}, UseCache: true})

	rec := do(t, mux, http.MethodGet, "/feed?country=us", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fv feedView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fv))
	assert.Equal(t, 2, fv.Total)
	assert.Equal(t, 1, fv.Filtered)
	assert.False(t, fv.Empty)
	assert.Equal(t, "162.243.103.246", fv.Rows[0]["ip"])
	assert.Equal(t, "ip", fv.Columns[0])

	rec = do(t, mux, http.MethodGet, "/feed?limit=1", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fv))
	assert.Equal(t, 1, fv.Filtered)
	assert.Equal(t, 2, src.fetches)
}

func TestFeedEmptyAndFailure(t *testing.T) {
	empty, err := feed.Parse([]byte(`{"data":[]}`), feed.FormatJSON)
	require.NoError(t, err)
	mux := BuildRoutes(Deps{Reporter: &fakeReporter{}, Feed: &fakeFeed{table: empty}, Geocoder: &fakeGeocoder{}})
	rec := do(t, mux, http.MethodGet, "/feed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fv feedView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fv))
	assert.True(t, fv.Empty)
	assert.NotNil(t, fv.Rows)

	mux = BuildRoutes(Deps{Reporter: &fakeReporter{}, Feed: &fakeFeed{err: errors.New("fetch feed: HTTP 503")}, Geocoder: &fakeGeocoder{}})
	rec = do(t, mux, http.MethodGet, "/feed", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "HTTP 503")
	assert.Contains(t, rec.Body.String(), "warning")
}

func TestRefresh(t *testing.T) {
	src := &fakeFeed{table: sampleTable(t)}
	mux := BuildRoutes(Deps{Reporter: &fakeReporter{}, Feed: src, Geocoder: &fakeGeocoder{}})

	rec := do(t, mux, http.MethodGet, "/feed/refresh", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 0, src.clears)

	rec = do(t, mux, http.MethodPost, "/feed/refresh", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, src.clears)
}

func TestHeatmapDefaultsAndLimit(t *testing.T) {
	gc := &fakeGeocoder{}
	mux := BuildRoutes(Deps{Reporter: &fakeReporter{}, Feed: &fakeFeed{table: sampleTable(t)}, Geocoder: gc})

	rec := do(t, mux, http.MethodGet, "/heatmap", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultHeatmapLimit, gc.limit)
	assert.Equal(t, []string{"51.75.159.178", "162.243.103.246"}, gc.ips)
	var hv heatmapView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hv))
	assert.Equal(t, 1, hv.Count)
	require.NotNil(t, hv.Points[0].Lat)

	do(t, mux, http.MethodGet, "/heatmap?limit=5", nil)
	assert.Equal(t, 5, gc.limit)
}

// countingGeo：统计真实批量编码器发出的单 IP 查询次数
type countingGeo struct{ calls int32 }

func (c *countingGeo) Name() string { return "ipinfo" }

func (c *countingGeo) LookupGeo(ctx context.Context, ip string) (*intel.GeoRecord, error) {
	atomic.AddInt32(&c.calls, 1)
	lat, lon := intel.ParseLoc("1,2")
	return &intel.GeoRecord{IP: ip, Lat: lat, Lon: lon, Provider: "ipinfo"}, nil
}

func TestHeatmapLimitCappedByConfig(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"data":[`)
	for i := 0; i < 1000; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"ip_address":"10.0.%d.%d"}`, i/256, i%256)
	}
	b.WriteString(`]}`)
	tbl, err := feed.Parse([]byte(b.String()), feed.FormatJSON)
	require.NoError(t, err)
	require.Equal(t, 1000, tbl.Len())

	geo := &countingGeo{}
	mux := BuildRoutes(Deps{
		Reporter:     &fakeReporter{},
		Feed:         &fakeFeed{table: tbl},
		Geocoder:     geocode.New(geo, 4),
		GeocodeLimit: 200,
	})

	rec := do(t, mux, http.MethodGet, "/heatmap?limit=1000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 200, atomic.LoadInt32(&geo.calls))
	var hv heatmapView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hv))
	assert.Equal(t, 200, hv.Count)
}

func TestNilViewCacheIsNoop(t *testing.T) {
	var v *ViewCache
	var dst heatmapView
	assert.False(t, v.Get(context.Background(), "heatmap", "view:heatmap:1", &dst))
	v.Set(context.Background(), "view:heatmap:1", dst, 0)
	v.Invalidate(context.Background())

	v = NewViewCache(nil)
	assert.False(t, v.Get(context.Background(), "feed", feedViewKey, &dst))
}

func TestGetClientIP(t *testing.T) {
	for name, tc := range map[string]struct {
		target string
		hdr    map[string]string
		want   string
	}{
		"query":     {"/report?ip=1.2.3.4", map[string]string{"X-Real-IP": "9.9.9.9"}, "1.2.3.4"},
		"xff":       {"/report", map[string]string{"X-Forwarded-For": " 5.6.7.8 , 10.0.0.1"}, "5.6.7.8"},
		"real ip":   {"/report", map[string]string{"X-Real-IP": "9.9.9.9"}, "9.9.9.9"},
		"forwarded": {"/report", map[string]string{"Forwarded": `for="198.51.100.17";proto=https`}, "198.51.100.17"},
		"remote":    {"/report", nil, "192.0.2.1"},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			for k, v := range tc.hdr {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, getClientIP(req))
		})
	}
}
