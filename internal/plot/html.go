package plot

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/John-Robertt/flakyrank/internal/domain"
)

// Meta 是渲染页面的标题信息。
type Meta struct {
	Title    string
	RunID    string
	Pattern  string
	Selector domain.Selector
}

const (
	svgWidth   = 800
	svgHeight  = 400
	marginLeft = 56
	marginRest = 32
)

type pagePoint struct {
	Index int
	Rank  int
	Found bool
	Total int
	X, Y  float64
}

type pageTick struct {
	Label string
	X, Y  float64
}

type page struct {
	Meta
	Width, Height int
	Left, Right   float64
	Top, Bottom   float64
	Polyline      string
	Points        []pagePoint
	Rows          []pagePoint
	XTicks        []pageTick
	YTicks        []pageTick
	Found         int
}

var pageTmpl = template.Must(template.New("ranks").Parse(`<!DOCTYPE html>
<html lang="zh">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 24px; }
.series { fill: none; stroke: #2196F3; stroke-width: 1.5; }
.point { fill: #2196F3; }
.axis { stroke: #555; }
.tick { font-size: 11px; fill: #555; }
tr.not-found td { color: #e53935; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">run_id={{.RunID}} pattern={{.Pattern}} target={{.Selector}} ranked={{.Found}}/{{len .Rows}}</p>
<svg id="chart" xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}">
<line class="axis" x1="{{.Left}}" y1="{{.Bottom}}" x2="{{.Right}}" y2="{{.Bottom}}"></line>
<line class="axis" x1="{{.Left}}" y1="{{.Top}}" x2="{{.Left}}" y2="{{.Bottom}}"></line>
{{range .XTicks}}<text class="tick x" x="{{.X}}" y="{{.Y}}" text-anchor="middle">{{.Label}}</text>
{{end}}{{range .YTicks}}<text class="tick y" x="{{.X}}" y="{{.Y}}" text-anchor="end">{{.Label}}</text>
{{end}}{{if .Polyline}}<polyline class="series" points="{{.Polyline}}"></polyline>
{{end}}{{range .Points}}<circle class="point" cx="{{.X}}" cy="{{.Y}}" r="3" data-index="{{.Index}}" data-rank="{{.Rank}}"></circle>
{{end}}</svg>
<table id="ranks">
<thead><tr><th>block</th><th>rank</th><th>records</th></tr></thead>
<tbody>
{{range .Rows}}{{if .Found}}<tr data-index="{{.Index}}"><td>{{.Index}}</td><td>{{.Rank}}</td><td>{{.Total}}</td></tr>
{{else}}<tr class="not-found" data-index="{{.Index}}"><td>{{.Index}}</td><td>未找到</td><td>{{.Total}}</td></tr>
{{end}}{{end}}</tbody>
</table>
</body>
</html>
`))

// WriteHTML 把 rank 序列渲染为带内嵌 SVG 折线图（x=block 序号，y=rank）与数据表的 HTML 页面。
// 未找到目标的 block 只出现在表格中，不参与绘图。
func WriteHTML(w io.Writer, pts []domain.SeriesPoint, meta Meta) error {
	if strings.TrimSpace(meta.Title) == "" {
		meta.Title = "flakyrank"
	}
	return pageTmpl.Execute(w, buildPage(pts, meta))
}

func buildPage(pts []domain.SeriesPoint, meta Meta) page {
	p := page{
		Meta:   meta,
		Width:  svgWidth,
		Height: svgHeight,
		Left:   marginLeft,
		Right:  svgWidth - marginRest,
		Top:    marginRest,
		Bottom: svgHeight - marginRest,
	}

	maxIdx, maxRank := 1, 1
	for _, pt := range pts {
		if pt.Index > maxIdx {
			maxIdx = pt.Index
		}
		if pt.Result.Found && pt.Result.Rank > maxRank {
			maxRank = pt.Result.Rank
		}
	}

	sx := func(i int) float64 { return p.Left + float64(i)*(p.Right-p.Left)/float64(maxIdx) }
	sy := func(r int) float64 { return p.Bottom - float64(r)*(p.Bottom-p.Top)/float64(maxRank) }

	coords := make([]string, 0, len(pts))
	for _, pt := range pts {
		pp := pagePoint{Index: pt.Index, Rank: pt.Result.Rank, Found: pt.Result.Found, Total: pt.Result.Total}
		if pt.Result.Found {
			pp.X, pp.Y = round1(sx(pt.Index)), round1(sy(pt.Result.Rank))
			p.Points = append(p.Points, pp)
			coords = append(coords, fmt.Sprintf("%g,%g", pp.X, pp.Y))
			p.Found++
		}
		p.Rows = append(p.Rows, pp)
	}
	p.Polyline = strings.Join(coords, " ")

	for _, v := range ticks(maxIdx) {
		p.XTicks = append(p.XTicks, pageTick{Label: fmt.Sprint(v), X: round1(sx(v)), Y: p.Bottom + 16})
	}
	for _, v := range ticks(maxRank) {
		p.YTicks = append(p.YTicks, pageTick{Label: fmt.Sprint(v), X: p.Left - 6, Y: round1(sy(v)) + 4})
	}
	return p
}

// ticks 返回 [0, hi] 上不超过 7 个的整数刻度（包含两端），步长取 1/2/5×10^n。
func ticks(hi int) []int {
	if hi <= 0 {
		return []int{0}
	}
	step := niceStep(hi)
	out := make([]int, 0, 8)
	for v := 0; v < hi; v += step {
		out = append(out, v)
	}
	// 末端刻度离 hi 太近时用 hi 替换，避免标签重叠。
	if last := out[len(out)-1]; last > 0 && 2*(hi-last) < step {
		out = out[:len(out)-1]
	}
	return append(out, hi)
}

func niceStep(hi int) int {
	for mult := 1; ; mult *= 10 {
		for _, s := range []int{1, 2, 5} {
			if hi/(s*mult) <= 5 {
				return s * mult
			}
		}
	}
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
