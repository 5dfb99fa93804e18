package history

import (
	"context"
	"errors"
	"time"

	"resume-screener-go/internal/storage"
)

// ErrNoHistorySource 既没有配置MySQL也没有配置Redis
var ErrNoHistorySource = errors.New("history requires mysql or redis to be configured")

// Entry 一条历史记录
type Entry struct {
	RecordID    string
	SessionID   string
	Kind        string
	FileName    string
	Score       *float64
	Band        string
	RAGEnhanced bool
	ReportKey   string
	CreatedAt   time.Time
}

// Query 历史查询条件
type Query struct {
	SessionID string // 为空时查询所有会话，仅MySQL支持
	Limit     int
}

// Lister 优先从MySQL归档读取，没有归档时退回到Redis中的会话最近结果
type Lister struct {
	archive Archive
	recent  RecentCache
}

// NewLister archive 和 recent 均可为nil
func NewLister(archive Archive, recent RecentCache) *Lister {
	return &Lister{archive: archive, recent: recent}
}

// List 按时间倒序返回历史记录
func (l *Lister) List(ctx context.Context, q Query) ([]Entry, error) {
	switch {
	case l.archive != nil:
		records, err := l.archive.ListScreenings(ctx, storage.ScreeningQuery{SessionID: q.SessionID, Limit: q.Limit})
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(records))
		for _, r := range records {
			entries = append(entries, Entry{
				RecordID:    r.RecordID,
				SessionID:   r.SessionID,
				Kind:        r.Kind,
				FileName:    r.FileName,
				Score:       r.Score,
				Band:        r.ScoreBand,
				RAGEnhanced: r.RAGEnhanced,
				ReportKey:   r.ReportObjectKey,
				CreatedAt:   r.CreatedAt,
			})
		}
		return entries, nil
	case l.recent != nil && q.SessionID != "":
		results, err := l.recent.RecentResults(ctx, q.SessionID, q.Limit)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(results))
		for _, r := range results {
			entries = append(entries, Entry{
				RecordID:    r.RecordID,
				SessionID:   q.SessionID,
				Kind:        r.Kind,
				FileName:    r.FileName,
				Score:       r.Score,
				Band:        r.Band,
				RAGEnhanced: r.RAGEnhanced,
				CreatedAt:   r.CreatedAt,
			})
		}
		return entries, nil
	default:
		return nil, ErrNoHistorySource
	}
}
