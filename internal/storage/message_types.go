package storage

import "time"

// EventScreeningCompleted 发件箱事件类型
const EventScreeningCompleted = "screening.completed"

// ScreeningCompletedEvent 分析或匹配完成后发布的事件
type ScreeningCompletedEvent struct {
	RecordID        string    `json:"record_id"`
	SessionID       string    `json:"session_id"`
	Kind            string    `json:"kind"`
	FileName        string    `json:"file_name"`
	FileMD5         string    `json:"file_md5"`
	Score           *float64  `json:"score,omitempty"`
	ScoreBand       string    `json:"score_band,omitempty"`
	RAGEnhanced     bool      `json:"rag_enhanced"`
	ReportObjectKey string    `json:"report_object_key,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
}
