package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/tracing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var minioTracer = otel.Tracer("resume-screener/storage/minio")

// ReportArchive 原始分析报告存储
type ReportArchive interface {
	// UploadReport 保存原始JSON报告，返回对象键
	UploadReport(ctx context.Context, recordID string, data []byte) (string, error)
	// GetReport 读取原始JSON报告
	GetReport(ctx context.Context, objectKey string) ([]byte, error)
}

// 确保MinIO实现了ReportArchive接口
var _ ReportArchive = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	bucket string
}

// ReportObjectKey 报告对象键，例如 reports/{recordID}.json
func ReportObjectKey(recordID string) string {
	return fmt.Sprintf("reports/%s.json", recordID)
}

// NewMinIO 创建MinIO客户端并确保报告存储桶存在
func NewMinIO(ctx context.Context, cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	logger.Ctx(ctx).Debug().
		Str("endpoint", cfg.Endpoint).
		Str("bucket", cfg.ReportsBucket).
		Msg("初始化MinIO客户端")

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := NewMinIOFromClient(client, cfg)
	if err := m.ensureBucketExists(ctx); err != nil {
		return nil, err
	}

	if cfg.ReportExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, "expire-reports", cfg.ReportExpireDays); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("设置报告生命周期规则失败")
		}
	}
	return m, nil
}

// NewMinIOFromClient 包装已有的客户端
func NewMinIOFromClient(client *minio.Client, cfg *config.MinIOConfig) *MinIO {
	bucket := cfg.ReportsBucket
	if bucket == "" {
		bucket = "screening-reports"
	}
	return &MinIO{client: client, cfg: cfg, bucket: bucket}
}

// Bucket 报告存储桶名称
func (m *MinIO) Bucket() string {
	return m.bucket
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.cfg.Location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", m.bucket, err)
	}
	logger.Ctx(ctx).Info().Str("bucket", m.bucket).Msg("已创建报告存储桶")
	return nil
}

// setupBucketLifecycle 为报告存储桶设置过期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, ruleID string, expiryDays int) error {
	lc := lifecycle.NewConfiguration()
	lc.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, m.bucket, lc)
}

// UploadReport 保存原始JSON报告
func (m *MinIO) UploadReport(ctx context.Context, recordID string, data []byte) (string, error) {
	objectKey := ReportObjectKey(recordID)
	ctx, span := minioTracer.Start(ctx, "MinIO.UploadReport", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", m.bucket),
		attribute.String("minio.object_key", objectKey),
		attribute.Int("minio.size", len(data)),
	)

	info, err := m.client.PutObject(ctx, m.bucket, objectKey, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStorage)
		return "", fmt.Errorf("上传报告 %s/%s 失败: %w", m.bucket, objectKey, err)
	}

	logger.Ctx(ctx).Debug().
		Str("object_key", objectKey).
		Str("etag", info.ETag).
		Msg("报告已归档")
	span.SetStatus(codes.Ok, "")
	return objectKey, nil
}

// GetReport 读取原始JSON报告
func (m *MinIO) GetReport(ctx context.Context, objectKey string) ([]byte, error) {
	ctx, span := minioTracer.Start(ctx, "MinIO.GetReport", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("minio.object_key", objectKey))

	obj, err := m.client.GetObject(ctx, m.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStorage)
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", m.bucket, objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeObjectStorage)
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", m.bucket, objectKey, err)
	}
	span.SetStatus(codes.Ok, "")
	return data, nil
}

// GetPresignedURL 获取报告的预签名下载地址
func (m *MinIO) GetPresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, objectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}
	return u.String(), nil
}
