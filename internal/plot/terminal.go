package plot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/flakyrank/internal/domain"
)

var (
	colorPoint = lipgloss.Color("#2196F3")
	colorAxis  = lipgloss.Color("#8a8f98")
)

// TerminalOptions 控制终端图表的尺寸与渲染器。
type TerminalOptions struct {
	Width  int
	Height int
	// Renderer 为 nil 时使用 lipgloss 默认渲染器（按 stdout 探测颜色能力）。
	Renderer *lipgloss.Renderer
}

// Terminal 把 rank 序列画成字符散点图：x=block 序号（左 0 右 max），y=rank（下 0 上 max）。
// 多个 block 落在同一列时都会画出来。
func Terminal(pts []domain.SeriesPoint, opts TerminalOptions) string {
	r := opts.Renderer
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	pointStyle := r.NewStyle().Foreground(colorPoint)
	axisStyle := r.NewStyle().Foreground(colorAxis)

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 60
	}
	if height <= 0 {
		height = 12
	}

	maxIdx, maxRank := 0, 0
	found := 0
	for _, pt := range pts {
		if pt.Index > maxIdx {
			maxIdx = pt.Index
		}
		if pt.Result.Found {
			found++
			if pt.Result.Rank > maxRank {
				maxRank = pt.Result.Rank
			}
		}
	}
	if found == 0 {
		return "（没有可绘制的 rank）\n"
	}

	cols := min(width, maxIdx+1)
	rows := min(height, maxRank+1)

	grid := make([][]bool, rows)
	for i := range grid {
		grid[i] = make([]bool, cols)
	}
	for _, pt := range pts {
		if !pt.Result.Found {
			continue
		}
		c := scale(pt.Index, maxIdx, cols)
		rr := scale(pt.Result.Rank, maxRank, rows)
		grid[rows-1-rr][c] = true
	}

	labelW := len(strconv.Itoa(maxRank))
	var b strings.Builder
	for i, row := range grid {
		label := ""
		switch i {
		case 0:
			label = strconv.Itoa(maxRank)
		case rows - 1:
			label = "0"
		}
		b.WriteString(axisStyle.Render(fmt.Sprintf("%*s ┤", labelW, label)))
		for _, on := range row {
			if on {
				b.WriteString(pointStyle.Render("●"))
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}

	b.WriteString(axisStyle.Render(strings.Repeat(" ", labelW+1) + "└" + strings.Repeat("─", cols)))
	b.WriteByte('\n')

	right := strconv.Itoa(maxIdx)
	gap := cols - 1 - len(right)
	if gap < 1 {
		gap = 1
	}
	xAxis := strings.Repeat(" ", labelW+2) + "0"
	if maxIdx > 0 {
		xAxis += strings.Repeat(" ", gap) + right
	}
	b.WriteString(axisStyle.Render(xAxis))
	b.WriteByte('\n')
	return b.String()
}

// scale 把 [0, hi] 上的 v 映射到 [0, n) 的格子下标。
func scale(v, hi, n int) int {
	if hi <= 0 || n <= 1 {
		return 0
	}
	return v * (n - 1) / hi
}
