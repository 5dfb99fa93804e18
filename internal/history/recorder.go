// Package history 归档成功的分析和匹配结果：原始报告写入MinIO，记录和事件写入MySQL，
// 会话最近结果写入Redis。所有失败只记录日志，不影响终端上的结果展示。
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/storage"
	"resume-screener-go/internal/storage/models"
	"resume-screener-go/internal/types"
	"resume-screener-go/internal/view"
	"resume-screener-go/pkg/utils"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ReportStore 原始报告存储
type ReportStore interface {
	UploadReport(ctx context.Context, recordID string, data []byte) (string, error)
}

// Archive 筛选记录归档库
type Archive interface {
	CreateScreeningWithOutbox(ctx context.Context, record *models.ScreeningRecord, msg *models.OutboxMessage) error
	ListScreenings(ctx context.Context, q storage.ScreeningQuery) ([]models.ScreeningRecord, error)
}

// RecentCache 会话最近结果缓存
type RecentCache interface {
	PushRecentResult(ctx context.Context, sessionID string, result storage.RecentResult, limit int, ttl time.Duration) error
	RecentResults(ctx context.Context, sessionID string, limit int) ([]storage.RecentResult, error)
}

// EventTarget 完成事件的交换机和路由键，Exchange为空时不写发件箱
type EventTarget struct {
	Exchange   string
	RoutingKey string
}

// Recorder 实现 controller.ResultSink
type Recorder struct {
	sessionID string
	reports   ReportStore
	archive   Archive
	recent    RecentCache
	events    EventTarget
	recentTTL time.Duration
	newID     func() (string, error)
	tracer    trace.Tracer
}

// Option Recorder配置选项
type Option func(*Recorder)

// WithReportStore 保存原始JSON报告
func WithReportStore(s ReportStore) Option {
	return func(r *Recorder) { r.reports = s }
}

// WithArchive 写入MySQL归档
func WithArchive(a Archive) Option {
	return func(r *Recorder) { r.archive = a }
}

// WithRecentCache 写入Redis最近结果
func WithRecentCache(c RecentCache, ttl time.Duration) Option {
	return func(r *Recorder) {
		r.recent = c
		r.recentTTL = ttl
	}
}

// WithEvents 同事务写入完成事件
func WithEvents(target EventTarget) Option {
	return func(r *Recorder) { r.events = target }
}

// WithIDGenerator 测试用
func WithIDGenerator(newID func() (string, error)) Option {
	return func(r *Recorder) { r.newID = newID }
}

// NewRecorder 创建归档器
func NewRecorder(sessionID string, opts ...Option) *Recorder {
	r := &Recorder{
		sessionID: sessionID,
		newID:     newRecordID,
		tracer:    otel.Tracer("resume-screener/history"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// newRecordID 使用UUIDv7，按时间有序
func newRecordID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Enabled 是否有任何归档目标
func (r *Recorder) Enabled() bool {
	return r != nil && (r.reports != nil || r.archive != nil || r.recent != nil)
}

// Record 归档一次成功的结果
func (r *Recorder) Record(ctx context.Context, file types.UploadFile, result *types.AnalysisResult) {
	if !r.Enabled() || result == nil {
		return
	}
	ctx, span := r.tracer.Start(ctx, "history.Record")
	defer span.End()
	log := logger.Ctx(ctx)

	recordID, err := r.newID()
	if err != nil {
		log.Warn().Err(err).Msg("生成记录ID失败，跳过归档")
		return
	}
	span.SetAttributes(attribute.String("screening.record_id", recordID), attribute.String("screening.kind", string(result.Kind)))

	record := buildRecord(recordID, r.sessionID, file, result)

	if r.reports != nil && len(result.Raw) > 0 {
		key, err := r.reports.UploadReport(ctx, recordID, result.Raw)
		if err != nil {
			log.Warn().Err(err).Str("record_id", recordID).Msg("保存原始报告失败")
		} else {
			record.ReportObjectKey = key
		}
	}

	if r.archive != nil {
		msg, err := r.outboxMessage(record)
		if err != nil {
			log.Warn().Err(err).Str("record_id", recordID).Msg("构建完成事件失败")
		}
		if err := r.archive.CreateScreeningWithOutbox(ctx, record, msg); err != nil {
			log.Warn().Err(err).Str("record_id", recordID).Msg("写入筛选记录失败")
		}
	}

	if r.recent != nil {
		err := r.recent.PushRecentResult(ctx, r.sessionID, recentFromRecord(record), constants.RecentResultsLimit, r.recentTTL)
		if err != nil {
			log.Warn().Err(err).Str("record_id", recordID).Msg("写入最近结果失败")
		}
	}

	log.Debug().Str("record_id", recordID).Str("kind", record.Kind).Msg("结果已归档")
}

func (r *Recorder) outboxMessage(record *models.ScreeningRecord) (*models.OutboxMessage, error) {
	if r.events.Exchange == "" {
		return nil, nil
	}
	event := storage.ScreeningCompletedEvent{
		RecordID:        record.RecordID,
		SessionID:       record.SessionID,
		Kind:            record.Kind,
		FileName:        record.FileName,
		FileMD5:         record.FileMD5,
		Score:           record.Score,
		ScoreBand:       record.ScoreBand,
		RAGEnhanced:     record.RAGEnhanced,
		ReportObjectKey: record.ReportObjectKey,
		CompletedAt:     record.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("序列化完成事件失败: %w", err)
	}
	return models.NewOutboxMessage(record.RecordID, storage.EventScreeningCompleted, payload,
		r.events.Exchange, r.events.RoutingKey), nil
}

func buildRecord(recordID, sessionID string, file types.UploadFile, result *types.AnalysisResult) *models.ScreeningRecord {
	score := result.Score()
	record := &models.ScreeningRecord{
		RecordID:     recordID,
		SessionID:    sessionID,
		Kind:         string(result.Kind),
		FileName:     filepath.Base(file.Name),
		FileSize:     file.Size,
		FileMD5:      utils.CalculateMD5(file.Content),
		Score:        utils.Float64Ptr(score.Value, score.Valid),
		ScoreBand:    string(view.NewScoreView(score).Band),
		RAGEnhanced:  result.ModelInfo.RAGEnhanced,
		ResponseTime: utils.Float64Ptr(result.ModelInfo.ResponseTime.Value, result.ModelInfo.ResponseTime.Valid),
		ModelName:    firstNonEmpty(result.ModelInfo.DisplayName, result.ModelInfo.Name),
		Summary:      utils.Truncate(result.Summary, 2000),
		CreatedAt:    result.ReceivedAt,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	switch {
	case result.Resume != nil:
		record.KeywordsJSON = utils.ConvertMapToJSON(map[string][]string{
			"skills": result.Resume.Skills,
		})
	case result.Match != nil:
		record.KeywordsJSON = utils.ConvertMapToJSON(map[string][]string{
			"matched": result.Match.MatchedKeywords,
			"missing": result.Match.MissingKeywords,
		})
	}
	if jd := strings.TrimSpace(result.JobDescription); jd != "" {
		record.JDMD5 = utils.CalculateMD5([]byte(jd))
	}
	return record
}

func recentFromRecord(record *models.ScreeningRecord) storage.RecentResult {
	return storage.RecentResult{
		RecordID:    record.RecordID,
		Kind:        record.Kind,
		FileName:    record.FileName,
		Score:       record.Score,
		Band:        record.ScoreBand,
		RAGEnhanced: record.RAGEnhanced,
		CreatedAt:   record.CreatedAt,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
