package run

import (
	"time"

	"github.com/John-Robertt/flakyrank/internal/config"
	"github.com/John-Robertt/flakyrank/internal/domain"
)

// Observer 用于把“运行进度/阶段/block 结果”从核心执行流程中解耦出来。
//
// 约束：run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// 执行是串行的，事件按顺序在调用方 goroutine 中发出。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（目前只有 "scan"）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnBlockDone 在每个 source 处理完成时调用；idx 从 1 开始。
	OnBlockDone(idx, total int, res domain.BlockResult, dur time.Duration)
}
