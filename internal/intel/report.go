package intel

// 文档注释：单 IP 合并报告（对外）
// 背景：地理与信誉两路结果按成功与否分别填充；失败的一路只留下 *_error 字段。
// 约束：IP 恒存在；同一路的数据字段与错误字段互斥；报告为瞬时值，不落库。
type IPReport struct {
	IP string `json:"ip"`

	City    string   `json:"city,omitempty"`
	Region  string   `json:"region,omitempty"`
	Country string   `json:"country,omitempty"`
	Org     string   `json:"org,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`

	AbuseConfidenceScore *int   `json:"abuse_confidence_score,omitempty"`
	TotalReports         *int   `json:"total_reports,omitempty"`
	ISP                  string `json:"isp,omitempty"`
	ReputationCountry    string `json:"reputation_country,omitempty"`
	UsageType            string `json:"usage_type,omitempty"`

	GeoError string `json:"geo_error,omitempty"`
	RepError string `json:"rep_error,omitempty"`
}

// ApplyGeo：写入地理字段
func (r *IPReport) ApplyGeo(g *GeoRecord) {
	r.City = g.City
	r.Region = g.Region
	r.Country = g.Country
	r.Org = g.Org
	r.Lat = g.Lat
	r.Lon = g.Lon
}

// ApplyReputation：写入信誉字段，country_code 对外改名 reputation_country
func (r *IPReport) ApplyReputation(rep *ReputationRecord) {
	r.AbuseConfidenceScore = rep.AbuseConfidenceScore
	r.TotalReports = rep.TotalReports
	r.ISP = rep.ISP
	r.ReputationCountry = rep.CountryCode
	r.UsageType = rep.UsageType
}
