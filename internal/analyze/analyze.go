package analyze

import (
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/John-Robertt/flakyrank/internal/block"
	"github.com/John-Robertt/flakyrank/internal/domain"
	"github.com/John-Robertt/flakyrank/internal/rank"
	"github.com/John-Robertt/flakyrank/internal/record"
)

// Options 控制单个 block 的分析。
type Options struct {
	Selector domain.Selector
	Markers  block.Markers
}

// Result 是单个 block 的分析结果。
type Result struct {
	// Lines 是读取到的总行数（遇到结束标记后停止计数）。
	Lines int
	// Candidates 是起止标记之间的候选行数。
	Candidates int
	Records    []domain.Record
	Rank       domain.RankResult

	// Malformed 聚合了被跳过的行（*record.MalformedError），没有则为 nil。
	Malformed *multierror.Error
}

// MalformedCount 返回被跳过的行数。
func (r Result) MalformedCount() int {
	if r.Malformed == nil {
		return 0
	}
	return len(r.Malformed.Errors)
}

// Block 读取 r 中的一个 block 并计算目标排名。
// 只有读取失败才返回 error；无法解析的行被跳过并记录在 Result.Malformed 中。
func Block(r io.Reader, opts Options) (Result, error) {
	lines, total, err := block.ExtractReader(r, opts.Markers)
	if err != nil {
		return Result{}, err
	}
	res := Lines(lines, opts)
	res.Lines = total
	return res, nil
}

// Lines 对已经提取好的候选行做解析与排名。
func Lines(lines []block.Line, opts Options) Result {
	res := Result{
		Lines:      len(lines),
		Candidates: len(lines),
		Records:    make([]domain.Record, 0, len(lines)),
	}

	pidMode := opts.Selector.PIDMode()
	for _, l := range lines {
		rec, err := record.ParseLine(l.No, l.Text, pidMode)
		if err != nil {
			res.Malformed = multierror.Append(res.Malformed, err)
			continue
		}
		res.Records = append(res.Records, rec)
	}

	res.Rank = rank.Compute(res.Records, opts.Selector)
	return res
}
