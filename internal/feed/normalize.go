package feed

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// 规范列名
const (
	ColIP        = "ip"
	ColDstPort   = "dst_port"
	ColFirstSeen = "first_seen"
	ColLastSeen  = "last_seen"
)

// Format：载荷格式
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	// FormatAuto：按首个非空白字符判断，{ 或 [ 视为 JSON
	FormatAuto Format = "auto"
)

// renames：上游列名到规范列名；同一规范列有多个别名时按此顺序取首个出现者
var renames = []struct{ from, to string }{
	{"ip_address", ColIP},
	{"IP address", ColIP},
	{"dst_ip", ColIP},
	{"port", ColDstPort},
	{"Port", ColDstPort},
	{"Firstseen (UTC)", ColFirstSeen},
	{"first_seen_utc", ColFirstSeen},
	{"last_online", ColLastSeen},
	{"Lastonline (UTC)", ColLastSeen},
}

var aliases = func() map[string]bool {
	m := make(map[string]bool, len(renames))
	for _, r := range renames {
		m[r.from] = true
	}
	return m
}()

// normalizeRow：改名为规范列；规范列已存在时保留原值
func normalizeRow(in map[string]string) Row {
	out := make(Row, len(in))
	for k, v := range in {
		if !aliases[k] {
			out[k] = v
		}
	}
	for _, r := range renames {
		v, ok := in[r.from]
		if !ok {
			continue
		}
		if _, exists := out[r.to]; !exists {
			out[r.to] = v
		}
	}
	return out
}

// 文档注释：解析并归一化载荷
// 返回：零条目时为空表而非错误；JSON/CSV 语法错误返回 error。
func Parse(payload []byte, format Format) (*Table, error) {
	if format == FormatAuto {
		format = sniff(payload)
	}
	switch format {
	case FormatCSV:
		return parseCSV(payload)
	case FormatJSON:
		return parseJSON(payload)
	}
	return nil, fmt.Errorf("unsupported feed format %q", format)
}

func sniff(payload []byte) Format {
	t := bytes.TrimSpace(payload)
	if len(t) > 0 && (t[0] == '{' || t[0] == '[') {
		return FormatJSON
	}
	return FormatCSV
}

// 文档注释：JSON 载荷
// 背景：约定为 {"data":[{...}]}；顶层直接为数组时同样接受。数值保留原始字面量，null 视为缺省。
func parseJSON(payload []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode feed json: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	var entries []map[string]any
	if len(raw) > 0 && raw[0] == '[' {
		if err := unmarshalNumbers(raw, &entries); err != nil {
			return nil, fmt.Errorf("decode feed json: %w", err)
		}
	} else {
		var doc struct {
			Data []map[string]any `json:"data"`
		}
		if err := unmarshalNumbers(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode feed json: %w", err)
		}
		entries = doc.Data
	}
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		flat := make(map[string]string, len(e))
		for k, v := range e {
			if s, ok := scalar(v); ok {
				flat[k] = s
			}
		}
		rows = append(rows, normalizeRow(flat))
	}
	return newTable(rows), nil
}

func unmarshalNumbers(raw []byte, v any) error {
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	return d.Decode(v)
}

func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// 文档注释：CSV 载荷
// 背景：以 # 开头的注释行与空白行先剔除，首个剩余行为表头。
// 约束：行字段数可与表头不一致，多出的字段丢弃、缺少的列不写入。
func parseCSV(payload []byte) (*Table, error) {
	var kept bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(payload))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		kept.WriteString(line)
		kept.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read feed csv: %w", err)
	}
	r := csv.NewReader(&kept)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return newTable(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode feed csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	var rows []Row
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode feed csv: %w", err)
		}
		flat := make(map[string]string, len(header))
		for i, v := range rec {
			if i >= len(header) || header[i] == "" {
				break
			}
			flat[header[i]] = strings.TrimSpace(v)
		}
		rows = append(rows, normalizeRow(flat))
	}
	return newTable(rows), nil
}
