package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusRanked   = "ranked"
	StatusNotFound = "not_found"
	StatusFailed   = "failed"
)

// 配置阶段的 error_code 由 config 包定义（config.ErrCode*）。
const (
	ErrCodeTargetNotFound  = "target_not_found"
	ErrCodeMalformedRecord = "malformed_record"
	ErrCodeIOFailed        = "io_failed"
	ErrCodeCanceled        = "canceled"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	RunID    string   `json:"run_id"`
	Dir      string   `json:"dir"`
	Pattern  string   `json:"pattern"`
	Selector Selector `json:"selector"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []BlockResult `json:"items"`
}

type ReportSummary struct {
	// Blocks 是成功读取并处理的 source 数量。
	Blocks    int `json:"blocks"`
	Ranked    int `json:"ranked"`
	NotFound  int `json:"not_found"`
	Failed    int `json:"failed"`
	Malformed int `json:"malformed_lines"`
	// Ranks 按 block 顺序列出找到目标的 rank，供绘图方直接消费。
	Ranks []int `json:"ranks"`
}

// BlockResult 对应一个 source（一个 block）。
// Index 为 -1 的条目是合成条目（例如配置错误），不属于任何 source。
type BlockResult struct {
	Index  int    `json:"index"`
	Source string `json:"source"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Lines     int        `json:"lines"`
	Records   int        `json:"records"`
	Malformed int        `json:"malformed_lines"`
	Result    RankResult `json:"result"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 index 升序；index<0 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Index
		b := r.Items[j].Index
		if a < 0 {
			return false
		}
		if b < 0 {
			return true
		}
		return a < b
	})

	s := ReportSummary{Ranks: []int{}}
	for _, it := range r.Items {
		if it.Index >= 0 && it.Status != StatusFailed {
			s.Blocks++
		}
		s.Malformed += it.Malformed
		switch it.Status {
		case StatusRanked:
			s.Ranked++
			s.Ranks = append(s.Ranks, it.Result.Rank)
		case StatusNotFound:
			s.NotFound++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// Series 从 items 重建 RankSeries（只包含真实 block）。
func (r RunReport) Series() *RankSeries {
	s := &RankSeries{}
	for _, it := range r.Items {
		if it.Index < 0 || it.Status == StatusFailed {
			continue
		}
		s.Append(it.Index, it.Result)
	}
	return s
}

// MarshalJSON 仅用于集中约束输出的稳定性（nil 切片统一输出为 []）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	if r.Items == nil {
		r.Items = []BlockResult{}
	}
	if r.Summary.Ranks == nil {
		r.Summary.Ranks = []int{}
	}
	return json.Marshal(Alias(r))
}
