package models

import (
	"time"

	"gorm.io/datatypes"
)

// 发件箱消息状态
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 与筛选记录同事务写入，由中继异步发布到RabbitMQ
type OutboxMessage struct {
	ID               uint64         `gorm:"primaryKey;autoIncrement"`
	AggregateID      string         `gorm:"type:varchar(36);not null;index"` // 记录ID
	EventType        string         `gorm:"type:varchar(64);not null"`
	Payload          datatypes.JSON `gorm:"type:json;not null"`
	TargetExchange   string         `gorm:"type:varchar(128);not null"`
	TargetRoutingKey string         `gorm:"type:varchar(128);not null"`
	Status           string         `gorm:"type:varchar(16);default:'PENDING';not null;index:idx_outbox_pending,priority:1"`
	RetryCount       int            `gorm:"not null;default:0"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);index:idx_outbox_pending,priority:2"`
	ProcessedAt      *time.Time     `gorm:"type:datetime(6)"`
	ErrorMessage     string         `gorm:"type:text"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

// NewOutboxMessage 待发布的事件
func NewOutboxMessage(aggregateID, eventType string, payload []byte, exchange, routingKey string) *OutboxMessage {
	return &OutboxMessage{
		AggregateID:      aggregateID,
		EventType:        eventType,
		Payload:          datatypes.JSON(payload),
		TargetExchange:   exchange,
		TargetRoutingKey: routingKey,
		Status:           OutboxStatusPending,
	}
}

// MarkSent 发布成功
func (m *OutboxMessage) MarkSent(at time.Time) {
	m.Status = OutboxStatusSent
	m.ProcessedAt = &at
	m.ErrorMessage = ""
}

// MarkAttemptFailed 记录一次失败；达到 maxRetries 后不再重试，返回true
func (m *OutboxMessage) MarkAttemptFailed(err error, maxRetries int) bool {
	m.RetryCount++
	if err != nil {
		m.ErrorMessage = err.Error()
	}
	if m.RetryCount >= maxRetries {
		m.Status = OutboxStatusFailed
		return true
	}
	return false
}
