package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScreeningRecord 一次成功的分析或匹配的归档记录
type ScreeningRecord struct {
	RecordID        string         `gorm:"type:char(36);primaryKey"`
	SessionID       string         `gorm:"type:varchar(64);not null;index:idx_sr_session_created,priority:1"`
	Kind            string         `gorm:"type:varchar(20);not null;index:idx_sr_kind"`
	FileName        string         `gorm:"type:varchar(255)"`
	FileSize        int64          `gorm:"type:bigint"`
	FileMD5         string         `gorm:"type:char(32);index:idx_sr_file_md5"`
	JDMD5           string         `gorm:"type:char(32)"` // 仅匹配记录
	Score           *float64       `gorm:"type:decimal(6,2)"`
	ScoreBand       string         `gorm:"type:varchar(10)"`
	RAGEnhanced     bool           `gorm:"default:false"`
	ResponseTime    *float64       `gorm:"type:decimal(10,3)"` // 秒
	ModelName       string         `gorm:"type:varchar(100)"`
	Summary         string         `gorm:"type:text"`
	KeywordsJSON    datatypes.JSON `gorm:"type:json"` // 技能或匹配/缺失关键词
	ReportObjectKey string         `gorm:"type:varchar(1024)"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_sr_session_created,priority:2"`
}

func (ScreeningRecord) TableName() string {
	return "screening_records"
}
