package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/flakyrank/internal/domain"
	"github.com/John-Robertt/flakyrank/internal/plot"
)

func (a *app) plotCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "plot <report.json>",
		Short: "根据已有的 report.json 重新绘制 rank 图",
		Long: `读取 run 产生的 report.json，按 block 顺序重建 rank 序列。

指定 --out 时写出 <out>/ranks.html；否则 stdout 是终端时画字符图，不是终端时输出 HTML。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rr, err := readReport(args[0])
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			series := rr.Series()
			a.logger.Debug("读取报告完成", zap.String("report", args[0]), zap.Int("blocks", series.Len()))

			switch {
			case out != "":
				if err := writePlotFile(out, rr, series); err != nil {
					return &exitError{code: 1, err: fmt.Errorf("写出图表失败：%w", err)}
				}
			case isTTY(a.stdout):
				fmt.Fprint(a.stdout, plot.Terminal(series.Points(), plot.TerminalOptions{}))
			default:
				if err := plot.WriteHTML(a.stdout, series.Points(), metaFor(rr)); err != nil {
					return &exitError{code: 1, err: err}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "写出 ranks.html 的目录")
	return cmd
}

func readReport(path string) (domain.RunReport, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("读取报告失败：%w", err)
	}
	var rr domain.RunReport
	if err := json.Unmarshal(b, &rr); err != nil {
		return domain.RunReport{}, fmt.Errorf("报告 %q 不是合法的 RunReport JSON：%w", path, err)
	}
	return rr, nil
}
