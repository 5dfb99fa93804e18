// Package outbox 发件箱模式：筛选记录与事件在同一事务写入，由中继异步发布到RabbitMQ
package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/storage"
	"resume-screener-go/internal/storage/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRelay 轮询 outbox 表并将消息发布到消息代理
type MessageRelay struct {
	db              *gorm.DB
	publisher       storage.Publisher
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	tracer          trace.Tracer
	now             func() time.Time

	stopOnce sync.Once
	done     chan struct{}
	stopped  chan struct{}
}

// Option 中继配置选项
type Option func(*MessageRelay)

// WithPollingInterval 轮询间隔
func WithPollingInterval(d time.Duration) Option {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithBatchSize 每次轮询处理的消息数
func WithBatchSize(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// NewMessageRelay 创建一个新的 MessageRelay 实例
func NewMessageRelay(db *gorm.DB, publisher storage.Publisher, opts ...Option) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		pollingInterval: constants.DefaultRelayInterval,
		batchSize:       constants.OutboxBatchSize,
		maxRetries:      constants.OutboxMaxRetries,
		tracer:          otel.Tracer("resume-screener/outbox"),
		now:             time.Now,
		done:            make(chan struct{}),
		stopped:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 在后台轮询，直到 ctx 取消或调用 Stop
func (r *MessageRelay) Start(ctx context.Context) {
	logger.Ctx(ctx).Debug().Dur("interval", r.pollingInterval).Msg("MessageRelay starting")
	ticker := time.NewTicker(r.pollingInterval)

	go func() {
		defer close(r.stopped)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case <-ticker.C:
				if _, err := r.ProcessPending(ctx); err != nil {
					logger.Ctx(ctx).Warn().Err(err).Msg("处理发件箱消息失败")
				}
			}
		}
	}()
}

// Stop 停止轮询并等待当前批次结束
func (r *MessageRelay) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
	<-r.stopped
}

// Flush 一次性处理所有待发送消息，用于CLI退出前
func (r *MessageRelay) Flush(ctx context.Context) error {
	for {
		n, err := r.ProcessPending(ctx)
		if err != nil {
			return err
		}
		if n < r.batchSize {
			return nil
		}
	}
}

// ProcessPending 获取并处理一批待处理消息，返回本批消息数
func (r *MessageRelay) ProcessPending(ctx context.Context) (int, error) {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}
	defer tx.Rollback()

	// FOR UPDATE SKIP LOCKED 允许多个实例同时中继
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return 0, fmt.Errorf("获取待发送消息失败: %w", err)
	}

	// 空轮询不创建span
	if len(messages) == 0 {
		return 0, tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))),
	)
	defer span.End()

	for i := range messages {
		msg := &messages[i]
		err := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
		if err != nil {
			gaveUp := msg.MarkAttemptFailed(err, r.maxRetries)
			logger.Ctx(ctx).Warn().Err(err).
				Uint64("message_id", msg.ID).
				Str("aggregate_id", msg.AggregateID).
				Int("retries", msg.RetryCount).
				Bool("gave_up", gaveUp).
				Msg("发布发件箱消息失败")
		} else {
			msg.MarkSent(r.now())
		}

		// 更新失败时整批回滚，下次轮询重新拾取
		if err := tx.Save(msg).Error; err != nil {
			return 0, fmt.Errorf("更新发件箱消息 %d 失败: %w", msg.ID, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return len(messages), nil
}
