package storage

import (
	"context"
	"errors"

	"resume-screener-go/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

type gormSpanKey struct{}

// gormTracing 为每条SQL创建一个client span
type gormTracing struct {
	tracer trace.Tracer
	dbName string
}

func newGormTracing(dbName string) *gormTracing {
	return &gormTracing{tracer: mysqlTracer, dbName: dbName}
}

func (p *gormTracing) Name() string { return "screening:otel" }

// Initialize 在 create/query/update/delete/raw 各阶段前后挂回调
func (p *gormTracing) Initialize(db *gorm.DB) error {
	type register func(name string, fn func(*gorm.DB)) error

	cb := db.Callback()
	hooks := []struct {
		op          string
		before, end register
	}{
		{"INSERT", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"SELECT", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"UPDATE", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"DELETE", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"RAW", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.before("otel:start_"+h.op, p.start(h.op)); err != nil {
			return err
		}
		if err := h.end("otel:end_"+h.op, p.end); err != nil {
			return err
		}
	}
	return nil
}

func (p *gormTracing) start(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		ctx, span := p.tracer.Start(ctx, op+" "+table,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", op),
				attribute.String("db.sql.table", table),
			),
		)
		db.Statement.Context = context.WithValue(ctx, gormSpanKey{}, span)
	}
}

// end SQL 在回调执行后才生成，所以语句在这里写入
func (p *gormTracing) end(db *gorm.DB) {
	span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if sql := db.Statement.SQL.String(); sql != "" {
		span.SetAttributes(attribute.String("db.statement", tracing.SafeSQL(sql)))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

	switch {
	case db.Error == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(db.Error, gorm.ErrRecordNotFound):
		// GetScreening 查不到是正常结果
		span.SetAttributes(attribute.Bool("db.record_not_found", true))
	default:
		tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
	}
}
