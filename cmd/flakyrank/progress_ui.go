package main

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/flakyrank/internal/app/run"
	"github.com/John-Robertt/flakyrank/internal/config"
	"github.com/John-Robertt/flakyrank/internal/domain"
	"github.com/John-Robertt/flakyrank/internal/scan"
)

var _ run.Observer = (*progressUI)(nil)

var (
	colorOK   = lipgloss.Color("#4CAF50")
	colorWarn = lipgloss.Color("#FFC107")
	colorFail = lipgloss.Color("#F44336")
	colorDim  = lipgloss.Color("#8a8f98")
)

// progressUI 是交互终端下的进度输出。所有内容写到 w（通常是 stderr），不碰 stdout 的 JSON 契约。
// run 是串行执行的，事件都在同一个 goroutine 中到达。
type progressUI struct {
	w io.Writer

	ok   lipgloss.Style
	warn lipgloss.Style
	fail lipgloss.Style
	dim  lipgloss.Style

	startedAt time.Time
	ranked    int
	notFound  int
	failed    int
}

func newProgressUI(w io.Writer) *progressUI {
	return newProgressUIWithRenderer(w, lipgloss.NewRenderer(w))
}

func newProgressUIWithRenderer(w io.Writer, r *lipgloss.Renderer) *progressUI {
	return &progressUI{
		w:    w,
		ok:   r.NewStyle().Foreground(colorOK).Bold(true),
		warn: r.NewStyle().Foreground(colorWarn).Bold(true),
		fail: r.NewStyle().Foreground(colorFail).Bold(true),
		dim:  r.NewStyle().Foreground(colorDim),
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.startedAt = time.Now()

	fmt.Fprintf(p.w, "[%s] flakyrank run\n", p.startedAt.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  dir: %s\n", eff.Dir)
	fmt.Fprintf(p.w, "  pattern: %s\n", scan.Pattern(eff.Prefix, eff.Ext))
	fmt.Fprintf(p.w, "  target: %s\n", eff.Selector)
	fmt.Fprintf(p.w, "  max_blocks: %s\n", formatLimit(eff.MaxBlocks))
	fmt.Fprintf(p.w, "  markers: %q .. %q\n", eff.Markers.Start, eff.Markers.Stop)
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	switch name {
	case "scan":
		capped := ""
		if b, _ := fields["capped"].(bool); b {
			capped = " (已达 max_blocks 上限)"
		}
		fmt.Fprintf(p.w, "扫描: sources=%d%s (%s)\n\n", intField(fields, "sources"), capped, formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnBlockDone(idx, total int, res domain.BlockResult, dur time.Duration) {
	prefix := p.dim.Render(fmt.Sprintf("[%d/%d]", idx, total))

	switch res.Status {
	case domain.StatusRanked:
		p.ranked++
		note := ""
		if res.Malformed > 0 {
			note = fmt.Sprintf(" malformed=%d", res.Malformed)
		}
		fmt.Fprintf(p.w, "%s %s %s rank=%d/%d%s (%s)\n",
			prefix, res.Source, p.ok.Render("OK"), res.Result.Rank, res.Result.Total, note, formatShortDuration(dur),
		)
	case domain.StatusNotFound:
		p.notFound++
		fmt.Fprintf(p.w, "%s %s %s records=%d (%s)\n",
			prefix, res.Source, p.warn.Render("MISS"), res.Records, formatShortDuration(dur),
		)
	default:
		p.failed++
		fmt.Fprintf(p.w, "%s %s %s %s: %s (%s)\n",
			prefix, res.Source, p.fail.Render("FAIL"), res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	}

	if idx == total {
		fmt.Fprintf(p.w, "\n进度: ranked=%d miss=%d fail=%d elapsed=%s\n",
			p.ranked, p.notFound, p.failed, formatElapsed(time.Since(p.startedAt)),
		)
	}
}

func formatLimit(n int) string {
	if n <= 0 {
		return "不限制"
	}
	return fmt.Sprint(n)
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || len(s) <= limit {
		return s
	}
	if limit <= 3 {
		return s[:runeCut(s, limit)]
	}
	return s[:runeCut(s, limit-3)] + "..."
}

// runeCut 返回不超过 n 且落在 rune 边界上的切分位置。
func runeCut(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}

func intField(fields map[string]any, key string) int {
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
