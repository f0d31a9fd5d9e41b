package intel

import (
	"errors"
	"fmt"
)

// Kind：查询失败类别
type Kind int

const (
	// CredentialMissing：未配置密钥，在任何网络调用前快速失败
	CredentialMissing Kind = iota + 1
	// TransportFailure：网络不可达、超时、非 2xx 状态
	TransportFailure
	// ParseFailure：响应体无法解析或本地库无记录
	ParseFailure
)

func (k Kind) String() string {
	switch k {
	case CredentialMissing:
		return "credential_missing"
	case TransportFailure:
		return "transport_failure"
	case ParseFailure:
		return "parse_failure"
	}
	return "unknown"
}

// 文档注释：带类别的查询错误
// 背景：不同失败原因对调用方呈现同一形态（provider + 可读错误串），同时保留类别供指标与分支判断。
type LookupError struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *LookupError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *LookupError) Unwrap() error { return e.Err }

// Marker：渲染为对外错误标记
func (e *LookupError) Marker() ErrorMarker {
	return ErrorMarker{Provider: e.Provider, Error: e.Error()}
}

// ErrorMarker：对外的失败结果形态，仅含 provider 与 error 两个键
type ErrorMarker struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

// Fail：构造 LookupError 的便捷函数
func Fail(provider string, kind Kind, format string, args ...any) *LookupError {
	return &LookupError{Provider: provider, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// 文档注释：将任意错误归一为 ErrorMarker
// 背景：提供方约定返回 *LookupError；其他错误类型按传输失败兜底，保证调用方只面对一种形态。
func AsMarker(provider string, err error) ErrorMarker {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Marker()
	}
	return ErrorMarker{Provider: provider, Error: err.Error()}
}

// KindOf：取错误类别，非 LookupError 视为传输失败
func KindOf(err error) Kind {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Kind
	}
	return TransportFailure
}
