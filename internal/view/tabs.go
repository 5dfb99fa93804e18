package view

import (
	"fmt"
	"slices"
)

// 面板标识
const (
	PanelAnalyze = "analyze"
	PanelMatch   = "match"
	PanelChat    = "chat"
)

// DefaultPanels 面板顺序固定
var DefaultPanels = []string{PanelAnalyze, PanelMatch, PanelChat}

// TabSet 一组互斥的面板，任意时刻只有一个可见
type TabSet struct {
	panels []string
	active int
}

// NewTabSet initial 为空时激活第一个面板
func NewTabSet(initial string, panels ...string) (*TabSet, error) {
	if len(panels) == 0 {
		panels = DefaultPanels
	}
	ts := &TabSet{panels: slices.Clone(panels)}
	if initial == "" {
		return ts, nil
	}
	if err := ts.Select(initial); err != nil {
		return nil, err
	}
	return ts, nil
}

// Select 切换到指定面板，未知面板返回错误且不改变状态
func (t *TabSet) Select(id string) error {
	idx := slices.Index(t.panels, id)
	if idx < 0 {
		return fmt.Errorf("未知面板 %q，可选: %v", id, t.panels)
	}
	t.active = idx
	return nil
}

// Active 当前可见的面板
func (t *TabSet) Active() string {
	return t.panels[t.active]
}

// Visible 面板是否可见
func (t *TabSet) Visible(id string) bool {
	return t.Active() == id
}

// Panels 按顺序返回所有面板
func (t *TabSet) Panels() []string {
	return slices.Clone(t.panels)
}
