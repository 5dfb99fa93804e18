package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/tracing"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var rabbitTracer = otel.Tracer("resume-screener/storage/rabbitmq")

// ErrPublishNacked broker 对发布返回了 nack
var ErrPublishNacked = errors.New("rabbitmq: publish not acknowledged")

// Publisher 发件箱中继依赖的发布接口
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

var _ Publisher = (*RabbitMQ)(nil)

// RabbitMQ 筛选事件发布器。单通道，confirm模式，发布串行进行
type RabbitMQ struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	mu       sync.Mutex // 保护 ch 和 declared
	declared map[string]struct{}
}

// NewRabbitMQ 连接broker并声明筛选事件交换机(topic, durable)
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}
	ch, err := conn.Channel()
	if err == nil {
		err = ch.Confirm(false)
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("打开confirm通道失败: %w", err)
	}

	mq := &RabbitMQ{conn: conn, ch: ch, declared: map[string]struct{}{}}
	if cfg.ScreeningEventsExchange != "" {
		if err := mq.EnsureExchange(cfg.ScreeningEventsExchange); err != nil {
			_ = mq.Close()
			return nil, err
		}
	}
	return mq, nil
}

func (r *RabbitMQ) Close() error {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	return r.conn.Close()
}

// EnsureExchange 声明持久化的topic交换机，同名只声明一次
func (r *RabbitMQ) EnsureExchange(name string) error {
	switch name {
	case "":
		return errors.New("exchange名称不能为空")
	case "amq.default", "default":
		return fmt.Errorf("不能声明默认交换机 %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.declared[name]; ok {
		return nil
	}
	if err := r.ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明exchange %s 失败: %w", name, err)
	}
	r.declared[name] = struct{}{}
	return nil
}

// PublishMessage 发布并阻塞等待broker确认，nack 返回 ErrPublishNacked
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	ctx, span := rabbitTracer.Start(ctx, "RabbitMQ.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", exchangeName),
			attribute.String("messaging.rabbitmq.destination.routing_key", routingKey),
			attribute.Int("messaging.message.body.size", len(message)),
		),
	)
	defer span.End()

	confirm, err := r.publish(ctx, exchangeName, routingKey, newPublishing(ctx, message, persistent))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("发布消息失败: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	switch {
	case err != nil:
		tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
		return fmt.Errorf("等待发布确认失败: %w", err)
	case !acked:
		tracing.RecordRabbitMQNack(span, strconv.FormatUint(confirm.DeliveryTag, 10), "")
		logger.Ctx(ctx).Warn().
			Str("exchange", exchangeName).
			Str("routing_key", routingKey).
			Msg("消息被broker拒绝")
		return fmt.Errorf("%w (exchange=%s, routing_key=%s)", ErrPublishNacked, exchangeName, routingKey)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *RabbitMQ) publish(ctx context.Context, exchangeName, routingKey string, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch.PublishWithDeferredConfirmWithContext(ctx, exchangeName, routingKey, false, false, msg)
}

// newPublishing JSON消息体，消息头携带trace上下文
func newPublishing(ctx context.Context, body []byte, persistent bool) amqp.Publishing {
	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, amqpHeaderCarrier(headers))

	mode := amqp.Transient
	if persistent {
		mode = amqp.Persistent
	}
	return amqp.Publishing{
		Headers:      headers,
		DeliveryMode: mode,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
	}
}

// amqpHeaderCarrier 实现 propagation.TextMapCarrier
type amqpHeaderCarrier amqp.Table

func (c amqpHeaderCarrier) Get(key string) string {
	v, _ := c[key].(string)
	return v
}

func (c amqpHeaderCarrier) Set(key, value string) { c[key] = value }

func (c amqpHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
