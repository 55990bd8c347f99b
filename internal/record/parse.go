package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/John-Robertt/flakyrank/internal/domain"
)

const (
	ReasonTooFewFields = "too_few_fields"
	ReasonBadInteger   = "bad_integer"
	ReasonBadEntry     = "bad_entry"
	ReasonOverflow     = "overflow"
)

// MalformedError 表示某一行无法解析为 Record。
// 该错误只影响这一行：上层应跳过该行，继续处理同一 block 的其余行。
type MalformedError struct {
	Line   int
	Field  int
	Reason string
	Text   string
	Err    error
}

func (e *MalformedError) Error() string {
	var where string
	if e.Line > 0 {
		where = fmt.Sprintf("第 %d 行", e.Line)
	} else {
		where = "该行"
	}
	switch e.Reason {
	case ReasonTooFewFields:
		return fmt.Sprintf("%s字段不足（至少需要 id,occurrence）：%q", where, e.Text)
	case ReasonBadInteger:
		return fmt.Sprintf("%s字段 %d 不是整数：%q：%v", where, e.Field, e.Text, e.Err)
	case ReasonOverflow:
		return fmt.Sprintf("%s字段 %d 的 a*b 超出 int64 范围：%q", where, e.Field, e.Text)
	case ReasonBadEntry:
		if e.Err != nil {
			return fmt.Sprintf("%s字段 %d 不是合法的 [tag_a_b]：%q：%v", where, e.Field, e.Text, e.Err)
		}
		return fmt.Sprintf("%s字段 %d 不是合法的 [tag_a_b]：%q", where, e.Field, e.Text)
	default:
		return fmt.Sprintf("%s无法解析：%q", where, e.Text)
	}
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Parse 把一行候选文本解析为 Record。
//
// 字段布局（逗号分隔）：
//
//	id,occurrence[,pid],[tag_a_b],[tag_a_b],...,<尾部>
//
// 最后一个字段若去掉空白后为空（行尾逗号/换行残留），则不属于 tail；否则视为真实条目。
func Parse(line string, pidMode bool) (domain.Record, error) {
	return ParseLine(0, line, pidMode)
}

// ParseLine 与 Parse 相同，但在错误中带上行号 no。
func ParseLine(no int, line string, pidMode bool) (domain.Record, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, ",")

	minFields := 2
	if pidMode {
		minFields = 3
	}
	if len(fields) < minFields {
		return domain.Record{}, &MalformedError{Line: no, Field: len(fields), Reason: ReasonTooFewFields, Text: line}
	}

	rec := domain.Record{Line: no}
	var err error
	if rec.InjectionID, err = parseInt(no, 0, fields[0]); err != nil {
		return domain.Record{}, err
	}
	if rec.Occurrence, err = parseInt(no, 1, fields[1]); err != nil {
		return domain.Record{}, err
	}

	start := 2
	if pidMode {
		if rec.PID, err = parseInt(no, 2, fields[2]); err != nil {
			return domain.Record{}, err
		}
		rec.HasPID = true
		start = 3
	}

	end := len(fields)
	if end > start && strings.TrimSpace(fields[end-1]) == "" {
		end--
	}

	rec.Entries = make([]domain.Entry, 0, end-start)
	for i := start; i < end; i++ {
		e, err := parseEntry(no, i, fields[i])
		if err != nil {
			return domain.Record{}, err
		}
		rec.Entries = append(rec.Entries, e)
	}
	return rec, nil
}

func parseInt(no, idx int, s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, &MalformedError{Line: no, Field: idx, Reason: ReasonBadInteger, Text: s, Err: err}
	}
	return v, nil
}

// parseEntry 解析 [tag_a_b]：去掉首尾括号后按 '_' 切分，第 0 段是标签，第 1/2 段是整数。
// 多于 3 段时忽略其余段。
func parseEntry(no, idx int, raw string) (domain.Entry, error) {
	s := strings.TrimSpace(raw)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return domain.Entry{}, &MalformedError{Line: no, Field: idx, Reason: ReasonBadEntry, Text: raw}
	}

	parts := strings.Split(s[1:len(s)-1], "_")
	if len(parts) < 3 {
		return domain.Entry{}, &MalformedError{
			Line: no, Field: idx, Reason: ReasonBadEntry, Text: raw,
			Err: fmt.Errorf("需要至少 3 段，实际 %d 段", len(parts)),
		}
	}

	a, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return domain.Entry{}, &MalformedError{Line: no, Field: idx, Reason: ReasonBadEntry, Text: raw, Err: err}
	}
	b, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
	if err != nil {
		return domain.Entry{}, &MalformedError{Line: no, Field: idx, Reason: ReasonBadEntry, Text: raw, Err: err}
	}
	if mulOverflows(a, b) {
		return domain.Entry{}, &MalformedError{Line: no, Field: idx, Reason: ReasonOverflow, Text: raw}
	}
	return domain.Entry{Tag: parts[0], A: a, B: b}, nil
}

// mulOverflows 报告 a*b 是否超出 int64。
func mulOverflows(a, b int64) bool {
	if a == 0 || b == 0 {
		return false
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return true
	}
	return (a*b)/b != a
}
