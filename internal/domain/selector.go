package domain

import "fmt"

// Selector 在每个 block 中选出唯一的目标注入点。
// PID 为 nil 表示通配（非 pid 模式）。
type Selector struct {
	ID         int64  `json:"id"`
	Occurrence int64  `json:"occurrence"`
	PID        *int64 `json:"pid,omitempty"`
}

// PIDMode 为 true 时，解析器读取第 3 个字段作为 pid，匹配时也比较 pid。
func (s Selector) PIDMode() bool { return s.PID != nil }

// Matches 判断 r 是否为目标：id 与 occurrence 精确相等；pid 仅在 pid 模式下比较。
func (s Selector) Matches(r Record) bool {
	if r.InjectionID != s.ID || r.Occurrence != s.Occurrence {
		return false
	}
	if s.PID == nil {
		return true
	}
	return r.HasPID && r.PID == *s.PID
}

func (s Selector) String() string {
	if s.PID == nil {
		return fmt.Sprintf("id=%d occurrence=%d pid=*", s.ID, s.Occurrence)
	}
	return fmt.Sprintf("id=%d occurrence=%d pid=%d", s.ID, s.Occurrence, *s.PID)
}
