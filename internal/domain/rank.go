package domain

// RankResult 是单个 block 的排名结果。
// Found=false 时 Rank/TargetPriority 无意义（显式的“未找到”，不再用哨兵值参与匹配）。
type RankResult struct {
	Found          bool  `json:"found"`
	Rank           int   `json:"rank"`
	TargetPriority int64 `json:"target_priority"`
	// Total 是参与排序的优先级个数（即该 block 中有效 Record 的数量）。
	Total int `json:"total"`
}

// SeriesPoint 是 RankSeries 中的一个点（x = block 序号）。
type SeriesPoint struct {
	Index  int        `json:"index"`
	Result RankResult `json:"result"`
}

// RankSeries 是跨 block 的只追加累加器，由 driver 显式持有并传递。
type RankSeries struct {
	points []SeriesPoint
}

// Append 追加第 index 个 block 的结果。
func (s *RankSeries) Append(index int, r RankResult) {
	s.points = append(s.points, SeriesPoint{Index: index, Result: r})
}

// Len 返回已追加的 block 数（包含未找到目标的 block）。
func (s *RankSeries) Len() int { return len(s.points) }

// Points 返回全部点的拷贝。
func (s *RankSeries) Points() []SeriesPoint {
	return append([]SeriesPoint(nil), s.points...)
}

// Found 只返回找到了目标的点（绘图用）。
func (s *RankSeries) Found() []SeriesPoint {
	out := make([]SeriesPoint, 0, len(s.points))
	for _, p := range s.points {
		if p.Result.Found {
			out = append(out, p)
		}
	}
	return out
}

// Ranks 按顺序返回找到目标的 block 的 rank。
func (s *RankSeries) Ranks() []int {
	found := s.Found()
	out := make([]int, 0, len(found))
	for _, p := range found {
		out = append(out, p.Result.Rank)
	}
	return out
}
