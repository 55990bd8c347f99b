package run

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/John-Robertt/flakyrank/internal/config"
	"github.com/John-Robertt/flakyrank/internal/domain"
)

type recordObserver struct {
	startCalls int
	phases     []string
	blocks     []int
	totals     []int
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) { o.startCalls++ }

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnBlockDone(idx, total int, res domain.BlockResult, dur time.Duration) {
	o.blocks = append(o.blocks, res.Index)
	o.totals = append(o.totals, total)
}

func TestExecuteWithObserver_EmitsPhaseAndBlockEvents(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, 0, "5,2,[a_1_1],")
	writeLog(t, dir, 1, "5,2,[a_1_1],")

	obs := &recordObserver{}
	ExecuteWithObserver(context.Background(), effFor(dir), nil, obs)

	assert.Equal(t, 1, obs.startCalls)
	assert.Equal(t, []string{"scan"}, obs.phases)
	assert.Equal(t, []int{0, 1}, obs.blocks)
	assert.Equal(t, []int{2, 2}, obs.totals)
}
