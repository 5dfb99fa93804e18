package api

import "fmt"

// OutcomeKind 一次请求的三种终态，互斥
type OutcomeKind int

const (
	// OutcomeSuccess 后端返回了可用的数据
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRemote 后端返回了 error 字段
	OutcomeRemote
	// OutcomeTransport 网络失败、非JSON响应或其他失败
	OutcomeTransport
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRemote:
		return "remote_error"
	case OutcomeTransport:
		return "transport_error"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome 请求结果。Kind 决定哪些字段有效:
//   - Success: Value, Raw
//   - Remote: Message
//   - Transport: Err
type Outcome[T any] struct {
	Kind       OutcomeKind
	Value      T
	Raw        []byte
	Message    string
	Err        error
	StatusCode int
}

func success[T any](value T, raw []byte, status int) Outcome[T] {
	return Outcome[T]{Kind: OutcomeSuccess, Value: value, Raw: raw, StatusCode: status}
}

func remote[T any](message string, status int) Outcome[T] {
	return Outcome[T]{Kind: OutcomeRemote, Message: message, StatusCode: status}
}

func transport[T any](err error, status int) Outcome[T] {
	return Outcome[T]{Kind: OutcomeTransport, Err: err, StatusCode: status}
}

// StatusError 非2xx且没有error字段的响应
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}
