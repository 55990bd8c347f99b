package rank

import (
	"slices"

	"github.com/John-Robertt/flakyrank/internal/domain"
)

// Compute 计算目标 Record 在 block 内的排名。
//
// 目标是按行序第一个匹配 sel 的 Record；rank 是升序排序后第一个等于目标优先级的位置，
// 也就是严格小于目标优先级的个数。找不到目标时返回 Found=false（不会拿占位值去匹配）。
func Compute(records []domain.Record, sel domain.Selector) domain.RankResult {
	priorities := make([]int64, 0, len(records))
	var (
		target int64
		found  bool
	)
	for _, r := range records {
		p, _ := r.Priority()
		if !found && sel.Matches(r) {
			target = p
			found = true
		}
		priorities = append(priorities, p)
	}

	res := domain.RankResult{Total: len(priorities)}
	if !found {
		return res
	}

	pos, _ := Of(priorities, target)
	res.Found = true
	res.Rank = pos
	res.TargetPriority = target
	return res
}

// Of 返回 target 在 priorities 中的排名（不修改入参）。
// target 不在其中时 ok=false。
func Of(priorities []int64, target int64) (rank int, ok bool) {
	sorted := slices.Clone(priorities)
	slices.Sort(sorted)
	return slices.BinarySearch(sorted, target)
}
