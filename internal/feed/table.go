// 包 feed：拉取并归一化第三方恶意 IP 黑名单（Feodo Tracker），支持 JSON/CSV 两种传输格式与单文件本地缓存
package feed

import (
	"sort"
	"strings"
)

// Row：一条黑名单观测记录，键为归一化后的列名
type Row map[string]string

// IP：规范列 ip 的值
func (r Row) IP() string { return r[ColIP] }

// 文档注释：归一化后的表
// 约束：Columns 为全部行键的并集，ip 置首、其余按字典序，保证同一载荷两次解析输出完全一致。
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

func newTable(rows []Row) *Table {
	if rows == nil {
		rows = []Row{}
	}
	seen := map[string]bool{}
	cols := []string{}
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i] == ColIP || cols[j] == ColIP {
			return cols[i] == ColIP
		}
		return cols[i] < cols[j]
	})
	return &Table{Columns: cols, Rows: rows}
}

func (t *Table) Len() int { return len(t.Rows) }

// Empty：上游无条目；与拉取失败区分呈现
func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// Has：列是否存在
func (t *Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// IPs：按行序返回 ip 列（可能含重复，去重由批量地理编码负责）
func (t *Table) IPs() []string {
	out := make([]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		if ip := r.IP(); ip != "" {
			out = append(out, ip)
		}
	}
	return out
}

// Head：前 n 行预览；n<=0 或不足 n 行时返回全部
func (t *Table) Head(n int) *Table {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// asnColumns：ASN 过滤可匹配的列
var asnColumns = []string{"asn", "as_name", "as_number"}

// 文档注释：按国家与 ASN 过滤
// 背景：country 为大小写无关的等值匹配；asn 为大小写无关的子串匹配，作用于 asn/as_name/as_number 中存在的列。
// 约束：过滤条件为空或对应列不存在时忽略该条件；返回新表，不修改原表。
func (t *Table) Filter(country, asn string) *Table {
	country = strings.TrimSpace(country)
	asn = strings.ToLower(strings.TrimSpace(asn))
	useCountry := country != "" && t.Has("country")
	var cols []string
	if asn != "" {
		for _, c := range asnColumns {
			if t.Has(c) {
				cols = append(cols, c)
			}
		}
	}
	if !useCountry && len(cols) == 0 {
		return t
	}
	out := []Row{}
	for _, r := range t.Rows {
		if useCountry && !strings.EqualFold(r["country"], country) {
			continue
		}
		if len(cols) > 0 {
			hit := false
			for _, c := range cols {
				if strings.Contains(strings.ToLower(r[c]), asn) {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
		}
		out = append(out, r)
	}
	return &Table{Columns: t.Columns, Rows: out}
}
