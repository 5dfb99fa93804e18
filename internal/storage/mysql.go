package storage

import (
	"context"
	"fmt"
	"time"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/storage/models"
	"resume-screener-go/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("resume-screener/storage/mysql")

// ErrRecordNotFound 归档记录不存在
var ErrRecordNotFound = gorm.ErrRecordNotFound

// MySQL 筛选记录归档库
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.ConnectTimeoutSeconds)

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	m, err := NewMySQLFromDB(db, cfg)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := m.autoMigrateSchema(); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
		}
	}
	return m, nil
}

// NewMySQLFromDB 包装已打开的GORM连接并注册追踪插件
func NewMySQLFromDB(db *gorm.DB, cfg *config.MySQLConfig) (*MySQL, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm连接不能为空")
	}
	if cfg == nil {
		cfg = &config.MySQLConfig{}
	}
	if err := db.Use(newGormTracing(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}
	return &MySQL{db: db, cfg: cfg}, nil
}

func gormLogLevel(level int) gormlogger.LogLevel {
	switch level {
	case 2:
		return gormlogger.Error
	case 3:
		return gormlogger.Warn
	case 4:
		return gormlogger.Info
	default:
		return gormlogger.Silent
	}
}

// autoMigrateSchema 建表和索引，迁移期间不输出SQL日志
func (m *MySQL) autoMigrateSchema() error {
	quiet := m.db.Session(&gorm.Session{Logger: gormlogger.Discard})
	if err := quiet.AutoMigrate(&models.ScreeningRecord{}, &models.OutboxMessage{}); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// CreateScreeningWithOutbox 在同一事务中写入归档记录和发件箱消息
func (m *MySQL) CreateScreeningWithOutbox(ctx context.Context, record *models.ScreeningRecord, msg *models.OutboxMessage) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.CreateScreeningWithOutbox",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.String("db.operation", "INSERT"),
		attribute.String("screening.record_id", record.RecordID),
		attribute.String("screening.kind", record.Kind),
	)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("写入筛选记录失败: %w", err)
		}
		if msg == nil {
			return nil
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("写入发件箱消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ScreeningQuery 归档记录查询条件
type ScreeningQuery struct {
	SessionID string // 为空时查询所有会话
	Kind      string
	Limit     int
}

// ListScreenings 按创建时间倒序列出归档记录
func (m *MySQL) ListScreenings(ctx context.Context, q ScreeningQuery) ([]models.ScreeningRecord, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 20
	}

	db := m.db.WithContext(ctx).Model(&models.ScreeningRecord{})
	if q.SessionID != "" {
		db = db.Where("session_id = ?", q.SessionID)
	}
	if q.Kind != "" {
		db = db.Where("kind = ?", q.Kind)
	}

	var records []models.ScreeningRecord
	if err := db.Order("created_at desc").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询筛选记录失败: %w", err)
	}
	return records, nil
}

// GetScreening 通过ID获取归档记录
func (m *MySQL) GetScreening(ctx context.Context, recordID string) (*models.ScreeningRecord, error) {
	var record models.ScreeningRecord
	if err := m.db.WithContext(ctx).First(&record, "record_id = ?", recordID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
