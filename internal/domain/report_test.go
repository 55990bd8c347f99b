package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		Dir:        "/abs/logs",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []BlockResult{
			{Index: 2, Status: StatusNotFound, Malformed: 1},
			{Index: -1, Status: StatusFailed}, // 配置错误等合成项
			{Index: 0, Status: StatusRanked, Result: RankResult{Found: true, Rank: 4}},
			{Index: 1, Status: StatusRanked, Result: RankResult{Found: true, Rank: 0}, Malformed: 2},
		},
	}

	r.Finalize()

	// index<0 必须排在最后。
	got := []int{r.Items[0].Index, r.Items[1].Index, r.Items[2].Index, r.Items[3].Index}
	if got[0] != 0 || got[1] != 1 || got[2] != 2 || got[3] != -1 {
		t.Fatalf("items 排序不符合契约：%v", got)
	}
	s := r.Summary
	if s.Blocks != 3 || s.Ranked != 2 || s.NotFound != 1 || s.Failed != 1 || s.Malformed != 3 {
		t.Fatalf("summary 统计不正确：%+v", s)
	}
	if len(s.Ranks) != 2 || s.Ranks[0] != 4 || s.Ranks[1] != 0 {
		t.Fatalf("summary.ranks 不正确：%v", s.Ranks)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_MarshalJSON_EmptySlices(t *testing.T) {
	b, err := json.Marshal(RunReport{})
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"items":[]`)) || !bytes.Contains(b, []byte(`"ranks":[]`)) {
		t.Fatalf("空切片应输出为 []：%s", string(b))
	}
}

func TestRunReport_Series_SkipsFailedAndSynthetic(t *testing.T) {
	r := RunReport{Items: []BlockResult{
		{Index: 0, Status: StatusRanked, Result: RankResult{Found: true, Rank: 1}},
		{Index: 1, Status: StatusNotFound},
		{Index: 2, Status: StatusFailed},
		{Index: -1, Status: StatusFailed},
	}}

	s := r.Series()
	if s.Len() != 2 {
		t.Fatalf("期望 2 个点，实际 %d", s.Len())
	}
	if ranks := s.Ranks(); len(ranks) != 1 || ranks[0] != 1 {
		t.Fatalf("期望 ranks=[1]，实际 %v", ranks)
	}
}
