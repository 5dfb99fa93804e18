// Package view 把后端数据转换为展示用的视图模型，并提供终端渲染
package view

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"resume-screener-go/internal/types"
)

// ScoreBand 分数颜色分档
type ScoreBand string

const (
	BandGood ScoreBand = "good"
	BandFair ScoreBand = "fair"
	BandPoor ScoreBand = "poor"
	// BandNone 没有分数
	BandNone ScoreBand = ""
)

// 分档阈值，边界值归入较高的一档
const (
	GoodThreshold = 80
	FairThreshold = 60
)

// ClassifyScore s>=80 good，60<=s<80 fair，其余 poor
func ClassifyScore(s float64) ScoreBand {
	switch {
	case s >= GoodThreshold:
		return BandGood
	case s >= FairThreshold:
		return BandFair
	default:
		return BandPoor
	}
}

// ScoreView 分数展示
type ScoreView struct {
	Text string
	Band ScoreBand
}

// NewScoreView 无分数时显示 N/A 且不分档
func NewScoreView(score types.Score) ScoreView {
	if !score.Valid || math.IsNaN(score.Value) {
		return ScoreView{Text: "N/A", Band: BandNone}
	}
	return ScoreView{Text: formatNumber(score.Value), Band: ClassifyScore(score.Value)}
}

// SelectionView 已选文件
type SelectionView struct {
	Name      string
	Size      string
	Extension string
}

// NewSelectionView 构建已选文件的视图
func NewSelectionView(name string, size int64, ext string) SelectionView {
	return SelectionView{Name: name, Size: HumanSize(size), Extension: strings.ToUpper(ext)}
}

// DetailItem 扩展信息中的一行
type DetailItem struct {
	Label string
	Value string
}

// AnalysisView /upload 结果视图
type AnalysisView struct {
	Summary      string
	Score        ScoreView
	Skills       []string
	Experience   []string
	RedFlags     []string
	Suggestions  []string
	Enhanced     bool
	ResponseTime string
	Details      []DetailItem
}

// BuildAnalysisView 纯转换，不做任何输出
func BuildAnalysisView(result *types.AnalysisResult) AnalysisView {
	var v AnalysisView
	if result == nil || result.Resume == nil {
		v.Score = NewScoreView(types.Score{})
		return v
	}
	a := result.Resume
	v.Summary = strings.TrimSpace(result.Summary)
	v.Score = NewScoreView(a.Score)
	v.Skills = nonEmpty(a.Skills)
	v.Experience = nonEmpty(a.Experience)
	v.RedFlags = nonEmpty(a.RedFlags)
	v.Suggestions = nonEmpty(a.ImprovementSuggestions)
	v.Enhanced = result.ModelInfo.RAGEnhanced
	v.ResponseTime = formatSeconds(result.ModelInfo.ResponseTime)

	v.Details = appendDetail(nil, "Leadership potential", string(a.LeadershipPotential))
	v.Details = appendDetail(v.Details, "Technical depth", string(a.TechnicalDepth))
	v.Details = appendDetail(v.Details, "Career progression", string(a.CareerProgression))
	v.Details = appendDetail(v.Details, "Industry alignment", string(a.IndustryAlignment))
	v.Details = appendDetail(v.Details, "Recommendations", strings.Join(nonEmpty(a.Recommendations), "; "))
	v.Details = appendDetail(v.Details, "Other", string(a.Other))
	v.Details = appendModelDetails(v.Details, result.ModelInfo)
	return v
}

// SkillGapView 技能差距
type SkillGapView struct {
	Skill        string
	Importance   string
	LearningPath string
	TimeToLearn  string
	Priority     string
}

// MatchView /jd_match 结果视图
type MatchView struct {
	Summary      string
	Score        ScoreView
	Matched      []string
	Missing      []string
	Feedback     []string
	ActionItems  []string
	SkillGaps    []SkillGapView
	Enhanced     bool
	ResponseTime string
	Details      []DetailItem
}

// BuildMatchView 纯转换，不做任何输出
func BuildMatchView(result *types.AnalysisResult) MatchView {
	var v MatchView
	if result == nil || result.Match == nil {
		v.Score = NewScoreView(types.Score{})
		return v
	}
	a := result.Match
	v.Summary = strings.TrimSpace(result.Summary)
	v.Score = NewScoreView(a.Score)
	v.Matched = nonEmpty(a.MatchedKeywords)
	v.Missing = nonEmpty(a.MissingKeywords)
	v.Feedback = nonEmpty(a.Feedback)
	v.ActionItems = nonEmpty(a.ActionItems)
	for _, gap := range a.SkillGaps {
		v.SkillGaps = append(v.SkillGaps, SkillGapView{
			Skill:        string(gap.Skill),
			Importance:   string(gap.Importance),
			LearningPath: string(gap.LearningPath),
			TimeToLearn:  string(gap.TimeToLearn),
			Priority:     string(gap.Priority),
		})
	}
	v.Enhanced = result.ModelInfo.RAGEnhanced
	v.ResponseTime = formatSeconds(result.ModelInfo.ResponseTime)

	v.Details = appendDetail(nil, "Career path", strings.Join(nonEmpty(a.CareerPathSuggestions), "; "))
	if a.SalaryEstimate != nil {
		v.Details = appendDetail(v.Details, "Salary estimate", formatSalary(*a.SalaryEstimate))
	}
	v.Details = appendDetail(v.Details, "Culture fit", string(a.CultureFit))
	v.Details = appendDetail(v.Details, "Technical depth", string(a.TechnicalDepth))
	v.Details = appendDetail(v.Details, "Leadership potential", string(a.LeadershipPotential))
	if a.KeywordDensity.Valid {
		v.Details = appendDetail(v.Details, "Keyword density", formatNumber(a.KeywordDensity.Value)+"%")
	}
	v.Details = appendDetail(v.Details, "Other", string(a.Other))
	v.Details = appendModelDetails(v.Details, result.ModelInfo)
	return v
}

// ChatEntryView 聊天记录中的一条
type ChatEntryView struct {
	Sender   types.Sender
	Label    string
	Text     string
	Time     string
	Enhanced bool
}

// BuildChatEntryView 构建聊天条目视图
func BuildChatEntryView(entry types.ChatEntry) ChatEntryView {
	label := "You"
	if entry.Sender == types.SenderAssistant {
		label = "Assistant"
	}
	return ChatEntryView{
		Sender:   entry.Sender,
		Label:    label,
		Text:     entry.Text,
		Time:     entry.Timestamp.Format("15:04"),
		Enhanced: entry.RAGEnhanced,
	}
}

// HumanSize 1536 -> "1.5 KB"
func HumanSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	value := float64(n)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d Bytes", n)
	}
	return strconv.FormatFloat(math.Round(value*100)/100, 'f', -1, 64) + " " + units[i]
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

func formatSeconds(s types.Score) string {
	if !s.Valid {
		return ""
	}
	return (time.Duration(s.Value * float64(time.Second))).Round(10 * time.Millisecond).String()
}

func formatSalary(s types.SalaryEstimate) string {
	text := strings.TrimSpace(string(s.Range))
	if text == "" {
		return ""
	}
	if c := strings.TrimSpace(string(s.Currency)); c != "" {
		text += " " + c
	}
	if c := strings.TrimSpace(string(s.Confidence)); c != "" {
		text += " (confidence: " + c + ")"
	}
	return text
}

func appendModelDetails(items []DetailItem, info types.ModelInfo) []DetailItem {
	name := info.DisplayName
	if name == "" {
		name = info.Name
	}
	items = appendDetail(items, "Model", name)
	if info.Confidence.Valid {
		items = appendDetail(items, "Confidence", formatNumber(info.Confidence.Value)+"%")
	}
	return items
}

func appendDetail(items []DetailItem, label, value string) []DetailItem {
	value = strings.TrimSpace(value)
	if value == "" {
		return items
	}
	return append(items, DetailItem{Label: label, Value: value})
}

func nonEmpty(list types.TextList) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
