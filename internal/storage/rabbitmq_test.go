package storage

import (
	"context"
	"testing"

	"resume-screener-go/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestAMQPHeaderCarrierPropagatesTrace(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := amqp.Table{}
	prop := propagation.TraceContext{}
	prop.Inject(ctx, amqpHeaderCarrier(headers))
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", headers["traceparent"])

	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), amqpHeaderCarrier(headers)))
	assert.Equal(t, traceID, extracted.TraceID())
	assert.Contains(t, amqpHeaderCarrier(headers).Keys(), "traceparent")
	assert.Empty(t, amqpHeaderCarrier(amqp.Table{"n": 1}).Get("n"), "非字符串头被忽略")
}

func TestNewRabbitMQValidatesConfig(t *testing.T) {
	_, err := NewRabbitMQ(nil)
	assert.Error(t, err)
	_, err = NewRabbitMQ(&config.RabbitMQConfig{})
	assert.Error(t, err)
}

func TestNewPublishing(t *testing.T) {
	msg := newPublishing(context.Background(), []byte(`{"record_id":"r1"}`), true)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.JSONEq(t, `{"record_id":"r1"}`, string(msg.Body))
	assert.False(t, msg.Timestamp.IsZero())

	assert.Equal(t, amqp.Transient, newPublishing(context.Background(), nil, false).DeliveryMode)
}
