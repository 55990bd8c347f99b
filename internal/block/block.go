package block

import (
	"bufio"
	"io"
	"strings"
)

const (
	// DefaultStartMarker 标记 block 的开始（前缀匹配）。
	DefaultStartMarker = "Flaky Agent Table Start Time:"
	// DefaultStopMarker 标记 block 的结束（前缀匹配）。
	DefaultStopMarker = "Using time feedback mode:"
)

// State 是提取器的状态：BeforeStart -> InBlock -> Done。
type State int

const (
	BeforeStart State = iota
	InBlock
	Done
)

func (s State) String() string {
	switch s {
	case BeforeStart:
		return "before_start"
	case InBlock:
		return "in_block"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Markers 是起止标记。只要求前缀匹配，不要求整行相等。
type Markers struct {
	Start string
	Stop  string
}

// DefaultMarkers 返回内置的起止标记。
func DefaultMarkers() Markers {
	return Markers{Start: DefaultStartMarker, Stop: DefaultStopMarker}
}

func (m Markers) withDefaults() Markers {
	if m.Start == "" {
		m.Start = DefaultStartMarker
	}
	if m.Stop == "" {
		m.Stop = DefaultStopMarker
	}
	return m
}

// Line 是 block 内的一行候选文本。
type Line struct {
	// No 是在源文本中的行号（从 1 开始）。
	No   int
	Text string
}

// Extractor 逐行消费文本，只放行起止标记之间的行。
type Extractor struct {
	m     Markers
	state State
}

func NewExtractor(m Markers) *Extractor {
	return &Extractor{m: m.withDefaults()}
}

func (e *Extractor) State() State { return e.state }

// Feed 消费一行，返回该行是否为候选 Record 行。
//
// - BeforeStart：丢弃；遇到起始标记进入 InBlock（标记行本身丢弃）
// - InBlock：遇到结束标记进入 Done；重复出现的起始标记行与空行丢弃
// - Done：终态，什么都不放行
func (e *Extractor) Feed(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	switch e.state {
	case BeforeStart:
		if strings.HasPrefix(line, e.m.Start) {
			e.state = InBlock
		}
		return false
	case InBlock:
		if strings.HasPrefix(line, e.m.Start) {
			return false
		}
		if strings.HasPrefix(line, e.m.Stop) {
			e.state = Done
			return false
		}
		return strings.TrimSpace(line) != ""
	default:
		return false
	}
}

// Extract 从完整的行序列中取出候选行（行号从 1 开始计）。
func Extract(lines []string, m Markers) []Line {
	e := NewExtractor(m)
	out := make([]Line, 0, len(lines))
	for i, l := range lines {
		if e.Feed(l) {
			out = append(out, Line{No: i + 1, Text: strings.TrimRight(l, "\r\n")})
		}
		if e.State() == Done {
			break
		}
	}
	return out
}

// ExtractReader 读完 r 并返回候选行。遇到结束标记后停止扫描（剩余内容不再读取）。
// 单行长度不设上限。
func ExtractReader(r io.Reader, m Markers) (lines []Line, total int, err error) {
	e := NewExtractor(m)
	br := bufio.NewReader(r)

	for {
		text, rerr := br.ReadString('\n')
		if rerr != nil && rerr != io.EOF {
			return nil, total, rerr
		}
		if text == "" && rerr == io.EOF {
			break
		}
		total++
		text = strings.TrimRight(text, "\r\n")
		if e.Feed(text) {
			lines = append(lines, Line{No: total, Text: text})
		}
		if e.State() == Done || rerr == io.EOF {
			break
		}
	}
	return lines, total, nil
}
