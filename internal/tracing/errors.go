package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType span上 error.type 的取值
type ErrorType string

const (
	// 与控制器的三类错误一一对应
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeRemote     ErrorType = "remote"
	ErrorTypeTransport  ErrorType = "transport"

	// 可选存储
	ErrorTypeDB            ErrorType = "db"
	ErrorTypeRedis         ErrorType = "redis"
	ErrorTypeObjectStorage ErrorType = "object_storage"
	ErrorTypeRabbitMQ      ErrorType = "rabbitmq"

	// ErrorTypeParse 本地文本预检
	ErrorTypeParse    ErrorType = "parse"
	ErrorTypeInternal ErrorType = "internal"
)

// 属性键
const (
	attrErrorType     = "error.type"
	attrErrorMessage  = "error.message"
	attrErrorCategory = "error.category"
)

// RecordError 把错误写入span并将状态置为Error，extra 为附加属性
func RecordError(span trace.Span, err error, errorType ErrorType, extra ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}
	msg := TruncateString(err.Error(), DefaultMaxLength)
	attrs := append([]attribute.KeyValue{
		attribute.String(attrErrorType, string(errorType)),
		attribute.String(attrErrorMessage, msg),
	}, extra...)

	span.RecordError(err)
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Error, msg)
}

// RecordHTTPError 后端请求失败。statusCode 为0表示没有拿到响应
func RecordHTTPError(span trace.Span, err error, errorType ErrorType, statusCode int) {
	RecordError(span, err, errorType,
		attribute.Int("http.status_code", statusCode),
		attribute.String(attrErrorCategory, HTTPErrorCategory(statusCode)),
	)
}

// HTTPErrorCategory 按状态码粗分错误来源。2xx 但仍失败的一般是响应体无法解析
func HTTPErrorCategory(statusCode int) string {
	switch {
	case statusCode == 0:
		return "network_error"
	case statusCode >= 500:
		return "server_error"
	case statusCode >= 400:
		return "client_error"
	default:
		return "unexpected_body"
	}
}

// RecordRabbitMQNack broker拒绝了发布确认。nack没有对应的error值，只设置属性和状态
func RecordRabbitMQNack(span trace.Span, messageID string, reason string) {
	if span == nil {
		return
	}
	if reason == "" {
		reason = "message not acknowledged by broker"
	}
	span.SetAttributes(
		attribute.String(attrErrorType, string(ErrorTypeRabbitMQ)),
		attribute.String(attrErrorMessage, reason),
		attribute.String(attrErrorCategory, "nack"),
		attribute.String("messaging.message_id", messageID),
	)
	span.SetStatus(codes.Error, reason)
}
