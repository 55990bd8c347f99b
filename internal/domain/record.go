package domain

// NoPriority 是“没有任何 tail 条目”时的优先级占位值。
// 真实输入按约定不会恰好算出该值。
const NoPriority int64 = 1_000_000

// Entry 是 tail 中的一个复合字段 [tag_a_b]。
type Entry struct {
	Tag string `json:"tag"`
	A   int64  `json:"a"`
	B   int64  `json:"b"`
}

// Product 返回 a*b。
func (e Entry) Product() int64 { return e.A * e.B }

// Record 是 block 内一行解析后的结果。
type Record struct {
	InjectionID int64 `json:"injection_id"`
	Occurrence  int64 `json:"occurrence"`

	// PID 仅在 pid 模式下解析（HasPID=true）。
	PID    int64 `json:"pid"`
	HasPID bool  `json:"has_pid"`

	Entries []Entry `json:"entries"`

	// Line 是该行在源文件中的行号（从 1 开始；未知时为 0）。
	Line int `json:"line"`
}

// Priority 返回所有条目中 a*b 的最小值。
// Entries 为空时返回 (NoPriority, false)。
func (r Record) Priority() (int64, bool) {
	if len(r.Entries) == 0 {
		return NoPriority, false
	}
	p := r.Entries[0].Product()
	for _, e := range r.Entries[1:] {
		if v := e.Product(); v < p {
			p = v
		}
	}
	return p, true
}
