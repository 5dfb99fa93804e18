package view

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"resume-screener-go/internal/types"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// ColorEnabled 根据配置决定是否输出ANSI颜色，auto 时只对终端启用
func ColorEnabled(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Regions 各展示区域的当前状态
type Regions struct {
	Selection      string
	ActionsEnabled bool
	Loading        bool
	Error          string
	ResultsVisible bool
	Typing         bool
	Description    string
}

// Terminal 把视图模型写到终端。终端无法撤回已输出的内容，隐藏只改变区域状态
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	color   bool
	tabs    *TabSet
	regions Regions
}

// NewTerminal 创建终端展示
func NewTerminal(out io.Writer, color bool, tabs *TabSet) *Terminal {
	if tabs == nil {
		tabs, _ = NewTabSet("")
	}
	return &Terminal{out: out, color: color, tabs: tabs}
}

// Regions 返回区域状态快照
func (t *Terminal) Regions() Regions {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.regions
}

// Tabs 返回面板集合
func (t *Terminal) Tabs() *TabSet {
	return t.tabs
}

// SelectTab 切换面板并输出面板栏
func (t *Terminal) SelectTab(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.tabs.Select(id); err != nil {
		return err
	}
	t.writeTabBar()
	return nil
}

// ShowTabs 输出面板栏
func (t *Terminal) ShowTabs() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeTabBar()
}

func (t *Terminal) writeTabBar() {
	parts := make([]string, 0, len(t.tabs.panels))
	for _, id := range t.tabs.panels {
		if t.tabs.Visible(id) {
			parts = append(parts, t.paint(ansiBold+ansiCyan, "["+id+"]"))
		} else {
			parts = append(parts, t.paint(ansiDim, " "+id+" "))
		}
	}
	fmt.Fprintln(t.out, strings.Join(parts, " "))
}

// SetDescription 保存JD草稿
func (t *Terminal) SetDescription(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.Description = text
}

// Notice 输出一行提示信息
func (t *Terminal) Notice(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.paint(ansiDim, fmt.Sprintf(format, args...)))
}

func (t *Terminal) ShowSelection(sel SelectionView) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.Selection = sel.Name
	fmt.Fprintf(t.out, "Selected: %s (%s)\n", t.paint(ansiBold, sel.Name), sel.Size)
}

func (t *Terminal) ClearSelection() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.Selection = ""
}

func (t *Terminal) SetActionsEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.ActionsEnabled = enabled
}

func (t *Terminal) ShowLoading(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.Loading = true
	fmt.Fprintln(t.out, t.paint(ansiDim, message))
}

func (t *Terminal) HideLoading() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.Loading = false
}

func (t *Terminal) ShowError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.Error = message
	fmt.Fprintln(t.out, t.paint(ansiRed, "✗ "+message))
}

func (t *Terminal) HideError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.Error = ""
}

func (t *Terminal) ShowAnalysis(v AnalysisView) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.ResultsVisible = true

	t.heading("Resume Analysis", v.Enhanced)
	if v.Summary != "" {
		fmt.Fprintln(t.out, v.Summary)
	}
	t.score("Score", v.Score)
	t.list("Skills", v.Skills)
	t.list("Experience", v.Experience)
	t.list("Red flags", v.RedFlags)
	t.list("Improvement suggestions", v.Suggestions)
	t.details(v.Details)
	t.responseTime(v.ResponseTime)
}

func (t *Terminal) ShowMatch(v MatchView) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.ResultsVisible = true

	t.heading("Job Description Match", v.Enhanced)
	if v.Summary != "" {
		fmt.Fprintln(t.out, v.Summary)
	}
	t.score("Match score", v.Score)
	t.list("Matched keywords", v.Matched)
	t.list("Missing keywords", v.Missing)
	t.list("Feedback", v.Feedback)
	t.list("Action items", v.ActionItems)
	if len(v.SkillGaps) > 0 {
		fmt.Fprintln(t.out, t.paint(ansiBold, "Skill gaps:"))
		for _, gap := range v.SkillGaps {
			line := fmt.Sprintf("  • %s", gap.Skill)
			if gap.Importance != "" {
				line += fmt.Sprintf(" [%s]", gap.Importance)
			}
			if gap.Priority != "" {
				line += fmt.Sprintf(" priority: %s", gap.Priority)
			}
			fmt.Fprintln(t.out, line)
			if gap.LearningPath != "" {
				fmt.Fprintf(t.out, "      learn: %s\n", gap.LearningPath)
			}
			if gap.TimeToLearn != "" {
				fmt.Fprintf(t.out, "      time:  %s\n", gap.TimeToLearn)
			}
		}
	}
	t.details(v.Details)
	t.responseTime(v.ResponseTime)
}

func (t *Terminal) HideResults() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.ResultsVisible = false
}

func (t *Terminal) ClearDescription() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.Description = ""
}

func (t *Terminal) AppendChatEntry(entry ChatEntryView) {
	t.mu.Lock()
	defer t.mu.Unlock()
	label := entry.Label
	if entry.Sender == types.SenderAssistant {
		label = t.paint(ansiCyan, label)
	} else {
		label = t.paint(ansiBold, label)
	}
	badge := ""
	if entry.Enhanced {
		badge = " " + t.paint(ansiGreen, "[RAG]")
	}
	fmt.Fprintf(t.out, "%s %s%s: %s\n", t.paint(ansiDim, entry.Time), label, badge, entry.Text)
}

func (t *Terminal) ShowTyping() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.Typing = true
	fmt.Fprintln(t.out, t.paint(ansiDim, "Assistant is typing..."))
}

func (t *Terminal) HideTyping() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.regions.Typing = false
}

func (t *Terminal) heading(title string, enhanced bool) {
	line := t.paint(ansiBold, "== "+title+" ==")
	if enhanced {
		line += " " + t.paint(ansiGreen, "[RAG enhanced]")
	}
	fmt.Fprintln(t.out, line)
}

func (t *Terminal) score(label string, s ScoreView) {
	text := s.Text
	switch s.Band {
	case BandGood:
		text = t.paint(ansiGreen, text+" (good)")
	case BandFair:
		text = t.paint(ansiYellow, text+" (fair)")
	case BandPoor:
		text = t.paint(ansiRed, text+" (poor)")
	}
	fmt.Fprintf(t.out, "%s: %s\n", t.paint(ansiBold, label), text)
}

func (t *Terminal) list(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(t.out, t.paint(ansiBold, label+":"))
	for _, item := range items {
		fmt.Fprintf(t.out, "  • %s\n", item)
	}
}

func (t *Terminal) details(items []DetailItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(t.out, t.paint(ansiDim, "-- details --"))
	for _, item := range items {
		fmt.Fprintf(t.out, "  %s: %s\n", item.Label, item.Value)
	}
}

func (t *Terminal) responseTime(rt string) {
	if rt == "" {
		return
	}
	fmt.Fprintln(t.out, t.paint(ansiDim, "Response time: "+rt))
}

func (t *Terminal) paint(code, text string) string {
	if !t.color {
		return text
	}
	return code + text + ansiReset
}
