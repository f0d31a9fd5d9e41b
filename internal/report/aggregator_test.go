package report

import (
	"context"
	"encoding/json"
	"sort"
	"testing"

	"threat-intel/internal/intel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGeo struct {
	rec *intel.GeoRecord
	err error
	ips []string
}

func (f *fakeGeo) Name() string { return "ipinfo" }

func (f *fakeGeo) LookupGeo(ctx context.Context, ip string) (*intel.GeoRecord, error) {
	f.ips = append(f.ips, ip)
	return f.rec, f.err
}

type fakeRep struct {
	rec *intel.ReputationRecord
	err error
	ips []string
}

func (f *fakeRep) Name() string { return "abuseipdb" }

func (f *fakeRep) LookupReputation(ctx context.Context, ip string) (*intel.ReputationRecord, error) {
	f.ips = append(f.ips, ip)
	return f.rec, f.err
}

func geoOK(ip string) *fakeGeo {
	lat, lon := intel.ParseLoc("52.52,13.405")
	return &fakeGeo{rec: &intel.GeoRecord{IP: ip, City: "Berlin", Region: "Berlin", Country: "DE", Org: "AS3320", Lat: lat, Lon: lon, Provider: "ipinfo"}}
}

func repOK(ip string) *fakeRep {
	score, total := 87, 412
	return &fakeRep{rec: &intel.ReputationRecord{IP: ip, AbuseConfidenceScore: &score, TotalReports: &total, CountryCode: "DE", ISP: "Deutsche Telekom", Domain: "telekom.de", UsageType: "ISP", Provider: "abuseipdb"}}
}

func keys(t *testing.T, r intel.IPReport) []string {
	t.Helper()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	var out []string
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestFullReportBothFail(t *testing.T) {
	geo := &fakeGeo{err: intel.Fail("ipinfo", intel.CredentialMissing, "IPINFO_TOKEN not set")}
	rep := &fakeRep{err: intel.Fail("abuseipdb", intel.TransportFailure, "abuseipdb: HTTP 503")}

	r := New(geo, rep).FullReport(context.Background(), "203.0.113.9")

	assert.Equal(t, []string{"geo_error", "ip", "rep_error"}, keys(t, r))
	assert.Equal(t, "IPINFO_TOKEN not set", r.GeoError)
	assert.Equal(t, "abuseipdb: HTTP 503", r.RepError)
	assert.Equal(t, []string{"203.0.113.9"}, geo.ips)
	assert.Equal(t, []string{"203.0.113.9"}, rep.ips)
}

func TestFullReportOnlyReputationFails(t *testing.T) {
	rep := &fakeRep{err: intel.Fail("abuseipdb", intel.CredentialMissing, "ABUSEIPDB_KEY not set")}

	r := New(geoOK("8.8.4.4"), rep).FullReport(context.Background(), "8.8.4.4")

	assert.Equal(t, []string{"city", "country", "ip", "lat", "lon", "org", "region", "rep_error"}, keys(t, r))
	assert.Equal(t, "Berlin", r.City)
	require.NotNil(t, r.Lat)
	assert.InDelta(t, 52.52, *r.Lat, 1e-9)
	assert.Empty(t, r.GeoError)
	assert.Nil(t, r.AbuseConfidenceScore)
}

func TestFullReportOnlyGeoFails(t *testing.T) {
	geo := &fakeGeo{err: intel.Fail("ipinfo", intel.ParseFailure, "decode ipinfo response: unexpected EOF")}

	r := New(geo, repOK("8.8.4.4")).FullReport(context.Background(), "8.8.4.4")

	assert.Equal(t, []string{"abuse_confidence_score", "geo_error", "ip", "isp", "reputation_country", "total_reports", "usage_type"}, keys(t, r))
	assert.Equal(t, "DE", r.ReputationCountry)
	assert.Equal(t, 87, *r.AbuseConfidenceScore)
	assert.Equal(t, 412, *r.TotalReports)
}

func TestFullReportBothSucceed(t *testing.T) {
	r := New(geoOK("1.2.3.4"), repOK("1.2.3.4")).FullReport(context.Background(), "1.2.3.4")

	assert.Equal(t, "1.2.3.4", r.IP)
	assert.Equal(t, "DE", r.Country)
	assert.Equal(t, "Deutsche Telekom", r.ISP)
	assert.Equal(t, "ISP", r.UsageType)
	assert.Empty(t, r.GeoError)
	assert.Empty(t, r.RepError)
	assert.NotContains(t, keys(t, r), "domain")
}
