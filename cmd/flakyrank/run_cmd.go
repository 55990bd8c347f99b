package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/flakyrank/internal/app/run"
	"github.com/John-Robertt/flakyrank/internal/config"
	"github.com/John-Robertt/flakyrank/internal/domain"
	"github.com/John-Robertt/flakyrank/internal/infra/fsx"
	"github.com/John-Robertt/flakyrank/internal/plot"
)

const (
	reportFileName = "report.json"
	plotFileName   = "ranks.html"
)

type runFlags struct {
	targetID   int64
	occurrence int64
	pid        int64
	prefix     string
	ext        string
	maxBlocks  int
	out        string
}

func (a *app) runCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "分析 dir 下的 <prefix>-<i>.<ext> 并输出 rank 报告",
		Long: `依次读取 <dir>/<prefix>-0.<ext>, <prefix>-1.<ext>, ...，直到第一个缺失的序号。

未指定 dir 时读取 ./flakyrank.yaml（必须包含 dir）；指定 dir 时 <dir>/flakyrank.yaml 可选。
命令行参数优先于配置文件。

stdout 不是终端时只输出一个 RunReport JSON；摘要与日志写到 stderr。
退出码：0 所有 block 都找到目标；1 存在未找到/失败的 block；2 用法错误。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := config.CLIArgs{
				Prefix: f.prefix,
				Out:    f.out,
			}
			if len(args) == 1 {
				cli.Dir = args[0]
			}
			flags := cmd.Flags()
			cli.TargetID, cli.TargetIDSet = f.targetID, flags.Changed("target-id")
			cli.Occurrence, cli.OccurrenceSet = f.occurrence, flags.Changed("occurrence")
			cli.PID, cli.PIDSet = f.pid, flags.Changed("pid")
			cli.Ext, cli.ExtSet = f.ext, flags.Changed("ext")
			cli.MaxBlocks, cli.MaxBlocksSet = f.maxBlocks, flags.Changed("max-blocks")
			return a.runAnalysis(cmd, cli)
		},
	}

	fl := cmd.Flags()
	fl.Int64Var(&f.targetID, "target-id", 0, "目标注入点 id")
	fl.Int64Var(&f.occurrence, "occurrence", 0, "目标注入点 occurrence")
	fl.Int64Var(&f.pid, "pid", config.WildcardPID, "目标 pid；-1 表示通配（记录中不含 pid 字段）")
	fl.StringVar(&f.prefix, "prefix", "", "输入文件名前缀（默认 "+config.DefaultPrefix+"）")
	fl.StringVar(&f.ext, "ext", config.DefaultExt, "输入文件扩展名；为空表示无扩展名")
	fl.IntVar(&f.maxBlocks, "max-blocks", 0, "最多处理的 block 数量；0 表示不限制")
	fl.StringVar(&f.out, "out", "", "写出 report.json 与 ranks.html 的目录")
	return cmd
}

func (a *app) runAnalysis(cmd *cobra.Command, cli config.CLIArgs) error {
	cwd, err := os.Getwd()
	if err != nil {
		return &exitError{code: 1, err: fmt.Errorf("读取当前目录失败：%w", err)}
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		a.logger.Error("加载配置失败", zap.String("error_code", config.Code(err)), zap.Error(err))
		if werr := a.emitReport(reportForConfigError(cwdAbs, err)); werr != nil {
			return &exitError{code: 1, err: werr}
		}
		return &exitError{code: 1}
	}

	var obs run.Observer
	progressW, interactive := a.pickProgressWriter()
	if interactive {
		obs = newProgressUI(progressW)
	}

	out := run.ExecuteWithObserver(cmd.Context(), eff, a.logger, obs)
	rr := out.Report

	if eff.Out != "" {
		if err := writeArtifacts(eff.Out, rr, out.Series); err != nil {
			_ = a.emitReport(rr)
			return &exitError{code: 1, err: fmt.Errorf("写出结果失败：%w", err)}
		}
	}

	if err := a.emitReport(rr); err != nil {
		return &exitError{code: 1, err: err}
	}
	if isTTY(a.stdout) {
		fmt.Fprint(a.stdout, plot.Terminal(out.Series.Points(), plot.TerminalOptions{}))
	}
	if interactive {
		emitLocations(progressW, eff)
	}

	if rr.Summary.Blocks == 0 && rr.Summary.Failed == 0 {
		return &exitError{code: 1, err: fmt.Errorf("未找到任何输入文件：%s", filepath.Join(eff.Dir, rr.Pattern))}
	}
	if rr.Summary.Failed == 0 && rr.Summary.NotFound == 0 {
		return nil
	}
	return &exitError{code: 1}
}

// emitReport 遵循输出契约：stdout 非 TTY 时只输出一个 RunReport JSON，摘要走 stderr。
// 写 stdout 失败时返回 error，由调用方按退出码 1 处理。
func (a *app) emitReport(rr domain.RunReport) error {
	if !isTTY(a.stdout) {
		enc := json.NewEncoder(a.stdout)
		if err := enc.Encode(rr); err != nil {
			return fmt.Errorf("输出报告失败：%w", err)
		}
		fmt.Fprintln(a.stderr, summaryLine(rr))
		return nil
	}

	if _, err := fmt.Fprintln(a.stdout, summaryLine(rr)); err != nil {
		return fmt.Errorf("输出摘要失败：%w", err)
	}
	for _, it := range rr.Items {
		if it.Status != domain.StatusFailed && it.Status != domain.StatusNotFound {
			continue
		}
		key := it.Source
		if key == "" {
			key = "<run>"
		}
		fmt.Fprintf(a.stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
	}
	return nil
}

func summaryLine(rr domain.RunReport) string {
	return fmt.Sprintf("完成：blocks=%d ranked=%d not_found=%d failed=%d malformed_lines=%d",
		rr.Summary.Blocks, rr.Summary.Ranked, rr.Summary.NotFound, rr.Summary.Failed, rr.Summary.Malformed,
	)
}

func reportForConfigError(cwdAbs string, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Dir:        cwdAbs,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.BlockResult{{
			Index:     -1,
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

// writeArtifacts 原子写出 <out>/report.json 与 <out>/ranks.html。
func writeArtifacts(out string, rr domain.RunReport, series *domain.RankSeries) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := fsx.WriteFileAtomic(out, reportFileName, b); err != nil {
		return err
	}
	return writePlotFile(out, rr, series)
}

func writePlotFile(out string, rr domain.RunReport, series *domain.RankSeries) error {
	var buf bytes.Buffer
	if err := plot.WriteHTML(&buf, series.Points(), metaFor(rr)); err != nil {
		return err
	}
	return fsx.WriteFileAtomic(out, plotFileName, buf.Bytes())
}

func metaFor(rr domain.RunReport) plot.Meta {
	title := ""
	if rr.Dir != "" {
		title = filepath.Base(rr.Dir)
	}
	return plot.Meta{Title: title, RunID: rr.RunID, Pattern: rr.Pattern, Selector: rr.Selector}
}

func (a *app) pickProgressWriter() (io.Writer, bool) {
	// 进度只在交互终端启用；默认走 stderr，不污染 stdout JSON。
	if isTTY(a.stderr) {
		return a.stderr, true
	}
	if isTTY(a.stdout) {
		return a.stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil || eff.Out == "" {
		return
	}
	fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.Out, reportFileName))
	fmt.Fprintf(w, "plot: %s\n", filepath.Join(eff.Out, plotFileName))
}
