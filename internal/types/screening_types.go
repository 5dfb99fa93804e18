package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AnalysisKind 区分分析结果来自哪个接口
type AnalysisKind string

const (
	// KindResume 简历分析 (/upload)
	KindResume AnalysisKind = "resume"
	// KindJDMatch 简历与JD匹配 (/jd_match)
	KindJDMatch AnalysisKind = "jd_match"
)

// Sender 聊天消息发送方
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Score 分数字段，兼容数字、数字字符串以及null
type Score struct {
	Value float64
	Valid bool
}

// UnmarshalJSON 实现json.Unmarshaler
func (s *Score) UnmarshalJSON(data []byte) error {
	*s = Score{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	var num float64
	if err := json.Unmarshal(trimmed, &num); err == nil {
		*s = Score{Value: num, Valid: true}
		return nil
	}

	// 模型偶尔会返回 "85" 或 "85/100" 这样的字符串
	var str string
	if err := json.Unmarshal(trimmed, &str); err != nil {
		return nil
	}
	str = strings.TrimSpace(str)
	if idx := strings.Index(str, "/"); idx > 0 {
		str = strings.TrimSpace(str[:idx])
	}
	str = strings.TrimSuffix(str, "%")
	if v, err := strconv.ParseFloat(str, 64); err == nil {
		*s = Score{Value: v, Valid: true}
	}
	return nil
}

// MarshalJSON 实现json.Marshaler
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// Ptr 返回分数指针，无效时返回nil
func (s Score) Ptr() *float64 {
	if !s.Valid {
		return nil
	}
	v := s.Value
	return &v
}

// TextList 字符串列表，容忍 null、单个字符串以及非字符串元素
type TextList []string

// UnmarshalJSON 实现json.Unmarshaler
func (l *TextList) UnmarshalJSON(data []byte) error {
	*l = nil
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil
		}
		out := make(TextList, 0, len(raw))
		for _, item := range raw {
			if text := rawToText(item); text != "" {
				out = append(out, text)
			}
		}
		*l = out
	default:
		if text := rawToText(trimmed); text != "" {
			*l = TextList{text}
		}
	}
	return nil
}

// FlexText 文本字段，对象或数字会被转成可读文本
type FlexText string

// UnmarshalJSON 实现json.Unmarshaler
func (t *FlexText) UnmarshalJSON(data []byte) error {
	*t = FlexText(rawToText(data))
	return nil
}

// rawToText 把任意JSON值转换成一行可展示的文本
func rawToText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return ""
		}
		// 常见形态: {"name": "...", "level": "..."}
		for _, key := range []string{"name", "skill", "title", "text"} {
			if v, ok := obj[key]; ok {
				if s := rawToText(v); s != "" {
					return s
				}
			}
		}
		return string(trimmed)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return ""
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if s := rawToText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return string(trimmed)
	}
}

// ModelInfo 后端返回的模型信息
type ModelInfo struct {
	Name         string `json:"name,omitempty"`
	DisplayName  string `json:"display_name,omitempty"`
	Confidence   Score  `json:"confidence"`
	ResponseTime Score  `json:"response_time"`
	AnalysisType string `json:"analysis_type,omitempty"`
	RAGEnhanced  bool   `json:"rag_enhanced"`
}

// ResumeAnalytics /upload 的 analytics 字段
type ResumeAnalytics struct {
	Score                  Score    `json:"score"`
	Skills                 TextList `json:"skills"`
	Experience             TextList `json:"experience"`
	RedFlags               TextList `json:"redflags"`
	ImprovementSuggestions TextList `json:"improvement_suggestions"`

	// 以下字段后端会返回，但属于扩展信息
	LeadershipPotential FlexText `json:"leadership_potential"`
	TechnicalDepth      FlexText `json:"technical_depth"`
	CareerProgression   FlexText `json:"career_progression"`
	IndustryAlignment   FlexText `json:"industry_alignment"`
	Recommendations     TextList `json:"recommendations"`
	Other               FlexText `json:"other"`
}

// SkillGap 技能差距建议
type SkillGap struct {
	Skill        FlexText `json:"skill"`
	Importance   FlexText `json:"importance"`
	LearningPath FlexText `json:"learning_path"`
	TimeToLearn  FlexText `json:"time_to_learn"`
	Priority     FlexText `json:"priority"`
}

// SalaryEstimate 薪资估计
type SalaryEstimate struct {
	Range      FlexText `json:"range"`
	Confidence FlexText `json:"confidence"`
	Currency   FlexText `json:"currency"`
}

// SkillGaps 技能差距列表，非对象元素会被忽略
type SkillGaps []SkillGap

// UnmarshalJSON 实现json.Unmarshaler
func (g *SkillGaps) UnmarshalJSON(data []byte) error {
	*g = nil
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := make(SkillGaps, 0, len(raw))
	for _, item := range raw {
		var gap SkillGap
		if err := json.Unmarshal(item, &gap); err != nil {
			continue
		}
		if gap.Skill == "" {
			continue
		}
		out = append(out, gap)
	}
	*g = out
	return nil
}

// MatchAnalytics /jd_match 的 analytics 字段
type MatchAnalytics struct {
	Score           Score     `json:"score"`
	MatchedKeywords TextList  `json:"matched_keywords"`
	MissingKeywords TextList  `json:"missing_keywords"`
	Feedback        TextList  `json:"feedback"`
	ActionItems     TextList  `json:"action_items"`
	SkillGaps       SkillGaps `json:"skill_gaps"`

	CareerPathSuggestions TextList        `json:"career_path_suggestions"`
	SalaryEstimate        *SalaryEstimate `json:"salary_estimate"`
	CultureFit            FlexText        `json:"culture_fit"`
	TechnicalDepth        FlexText        `json:"technical_depth"`
	LeadershipPotential   FlexText        `json:"leadership_potential"`
	KeywordDensity        Score           `json:"keyword_density"`
	Other                 FlexText        `json:"other"`
}

// AnalyzeResponse /upload 响应体
type AnalyzeResponse struct {
	Summary   FlexText        `json:"summary"`
	Analytics ResumeAnalytics `json:"analytics"`
	ModelInfo ModelInfo       `json:"model_info"`
	Error     string          `json:"error,omitempty"`
}

// MatchResponse /jd_match 响应体
type MatchResponse struct {
	Summary   FlexText       `json:"summary"`
	Analytics MatchAnalytics `json:"analytics"`
	ModelInfo ModelInfo      `json:"model_info"`
	Error     string         `json:"error,omitempty"`
}

// ChatRequest /chat 请求体
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse /chat 响应体
type ChatResponse struct {
	Response    string `json:"response"`
	RAGEnhanced bool   `json:"rag_enhanced"`
	Error       string `json:"error,omitempty"`
}

// AnalysisResult 最近一次成功的分析或匹配结果，整体替换，不做合并
type AnalysisResult struct {
	Kind       AnalysisKind
	Summary    string
	Resume     *ResumeAnalytics
	Match      *MatchAnalytics
	ModelInfo  ModelInfo
	Raw        []byte
	ReceivedAt time.Time

	// JobDescription 仅匹配结果有值，为发送时的JD文本
	JobDescription string
}

// Score 返回结果中的分数
func (r *AnalysisResult) Score() Score {
	if r == nil {
		return Score{}
	}
	switch r.Kind {
	case KindResume:
		if r.Resume != nil {
			return r.Resume.Score
		}
	case KindJDMatch:
		if r.Match != nil {
			return r.Match.Score
		}
	}
	return Score{}
}

// NewResumeResult 由 /upload 响应构建分析结果
func NewResumeResult(resp *AnalyzeResponse, raw []byte, receivedAt time.Time) *AnalysisResult {
	analytics := resp.Analytics
	return &AnalysisResult{
		Kind:       KindResume,
		Summary:    string(resp.Summary),
		Resume:     &analytics,
		ModelInfo:  resp.ModelInfo,
		Raw:        raw,
		ReceivedAt: receivedAt,
	}
}

// NewMatchResult 由 /jd_match 响应构建分析结果
func NewMatchResult(resp *MatchResponse, raw []byte, receivedAt time.Time) *AnalysisResult {
	analytics := resp.Analytics
	return &AnalysisResult{
		Kind:       KindJDMatch,
		Summary:    string(resp.Summary),
		Match:      &analytics,
		ModelInfo:  resp.ModelInfo,
		Raw:        raw,
		ReceivedAt: receivedAt,
	}
}

// ChatEntry 聊天记录中的一条
type ChatEntry struct {
	ID          string    `json:"id"`
	Sender      Sender    `json:"sender"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	RAGEnhanced bool      `json:"rag_enhanced"`
}

// UploadFile 上传给后端的文件
type UploadFile struct {
	Name    string
	Size    int64
	Content []byte
}

// String 便于日志输出
func (f UploadFile) String() string {
	return fmt.Sprintf("%s (%d bytes)", f.Name, f.Size)
}
