package run

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/flakyrank/internal/analyze"
	"github.com/John-Robertt/flakyrank/internal/config"
	"github.com/John-Robertt/flakyrank/internal/domain"
	"github.com/John-Robertt/flakyrank/internal/scan"
)

// Outcome 是一次运行的结果：对外稳定的 RunReport，以及按 block 顺序累加的 RankSeries。
type Outcome struct {
	Report domain.RunReport
	Series *domain.RankSeries
}

// Execute 执行一次分析并返回结果。
func Execute(ctx context.Context, eff config.EffectiveConfig, logger *zap.Logger) Outcome {
	return ExecuteWithObserver(ctx, eff, logger, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度（由上层决定是否启用）。
//
// 处理是严格串行的：每个 source 打开、读完、关闭之后才处理下一个。
// 未找到目标与无法解析的行只影响当前 block；已存在但读取失败的 source 会终止整个运行。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, logger *zap.Logger, obs Observer) Outcome {
	if logger == nil {
		logger = zap.NewNop()
	}
	started := time.Now().UTC()
	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	if obs != nil {
		obs.OnStart(eff)
	}

	series := &domain.RankSeries{}
	rr := domain.RunReport{
		RunID:     runID,
		Dir:       eff.Dir,
		Pattern:   scan.Pattern(eff.Prefix, eff.Ext),
		Selector:  eff.Selector,
		StartedAt: started,
		Items:     make([]domain.BlockResult, 0, 64),
	}
	finish := func() Outcome {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return Outcome{Report: rr, Series: series}
	}

	scanStarted := time.Now()
	sources, err := scan.IndexedSources(eff.Dir, eff.Prefix, eff.Ext, eff.MaxBlocks)
	if err != nil {
		logger.Error("扫描输入失败", zap.String("dir", eff.Dir), zap.Error(err))
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		return finish()
	}
	capped := eff.MaxBlocks > 0 && len(sources) == eff.MaxBlocks
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"sources": len(sources),
			"capped":  capped,
		}, time.Since(scanStarted))
	}
	logger.Debug("扫描完成", zap.Int("sources", len(sources)), zap.Bool("capped", capped))

	opts := analyze.Options{Selector: eff.Selector, Markers: eff.Markers}
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeCanceled, fmt.Sprintf("运行被取消：%v", err)))
			break
		}

		oneStarted := time.Now()
		res, fatal := processSource(src, opts, logger)
		if !fatal {
			series.Append(src.Index, res.Result)
		}
		rr.Items = append(rr.Items, res)
		if obs != nil {
			obs.OnBlockDone(i+1, len(sources), res, time.Since(oneStarted))
		}
		if fatal {
			break
		}
	}

	out := finish()
	logger.Info("处理完成",
		zap.Int("files", out.Report.Summary.Blocks),
		zap.Int("ranked", out.Report.Summary.Ranked),
		zap.Int("not_found", out.Report.Summary.NotFound),
		zap.Int("failed", out.Report.Summary.Failed),
	)
	return out
}

// processSource 读取并分析一个 source。fatal=true 表示读取失败，运行应当终止。
func processSource(src scan.Source, opts analyze.Options, logger *zap.Logger) (res domain.BlockResult, fatal bool) {
	res = domain.BlockResult{Index: src.Index, Source: src.RelPath}
	log := logger.With(zap.Int("index", src.Index), zap.String("source", src.RelPath))

	ar, err := analyzeFile(src.AbsPath, opts)
	if err != nil {
		log.Error("读取 source 失败", zap.Error(err))
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeIOFailed
		res.ErrorMsg = fmt.Sprintf("读取失败：%v", err)
		return res, true
	}

	res.Lines = ar.Lines
	res.Records = len(ar.Records)
	res.Malformed = ar.MalformedCount()
	res.Result = ar.Rank

	if ar.Malformed != nil {
		for _, e := range ar.Malformed.Errors {
			log.Debug("跳过无法解析的行", zap.Error(e))
		}
	}

	if !ar.Rank.Found {
		log.Warn("未找到目标注入点", zap.Stringer("target", opts.Selector), zap.Int("records", res.Records))
		res.Status = domain.StatusNotFound
		res.ErrorCode = domain.ErrCodeTargetNotFound
		res.ErrorMsg = fmt.Sprintf("未找到目标注入点（%s），共 %d 条记录", opts.Selector, res.Records)
		return res, false
	}

	res.Status = domain.StatusRanked
	if res.Malformed > 0 {
		res.ErrorCode = domain.ErrCodeMalformedRecord
		res.ErrorMsg = fmt.Sprintf("跳过 %d 行无法解析的记录", res.Malformed)
	}
	return res, false
}

// analyzeFile 打开、读完并关闭 path；句柄不会活过这一步。
func analyzeFile(path string, opts analyze.Options) (analyze.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return analyze.Result{}, err
	}
	defer f.Close()
	return analyze.Block(f, opts)
}

func syntheticFailed(code, msg string) domain.BlockResult {
	return domain.BlockResult{
		Index:     -1,
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}
