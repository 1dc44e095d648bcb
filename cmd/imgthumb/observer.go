package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/imgthumb/internal/config"
	"github.com/John-Robertt/imgthumb/internal/domain"
)

// consoleObserver 把 run 事件转成两路输出：
// - stdout：固定的契约行（开始、输出目录重置）
// - zerolog（stderr）：阶段耗时（info）与每个未成功条目的原因（debug）
type consoleObserver struct {
	out io.Writer

	mu  sync.Mutex
	log zerolog.Logger
}

func newConsoleObserver(out io.Writer, log zerolog.Logger) *consoleObserver {
	return &consoleObserver{out: out, log: log}
}

func (o *consoleObserver) logger() *zerolog.Logger {
	o.mu.Lock()
	defer o.mu.Unlock()
	l := o.log
	return &l
}

func (o *consoleObserver) OnStart(runID string, eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.log = o.log.With().Str("run_id", runID).Logger()
	fmt.Fprintf(o.out, "Processing images from %q\n", eff.InputDir)
	o.log.Info().
		Str("input", eff.InputDir).
		Str("output", eff.OutputDir).
		Int("workers", eff.Workers).
		Str("strategy", eff.Strategy).
		Msg("开始")
}

func (o *consoleObserver) OnOutputReset(dir string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	fmt.Fprintln(o.out, "Output directory already exists. Deleting...")
	o.log.Debug().Str("dir", dir).Msg("删除已存在的输出目录")
}

func (o *consoleObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.log.Info().Fields(fields).Dur("took", dur).Msgf("阶段完成：%s", name)
}

func (o *consoleObserver) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if res.Status == domain.StatusProcessed {
		o.log.Trace().Int("idx", idx).Int("total", total).Str("name", res.Name).Dur("took", dur).Msg("ok")
		return
	}
	ev := o.log.Debug()
	if res.Status == domain.StatusFailed {
		ev = o.log.Warn()
	}
	ev.Str("name", res.Name).
		Str("status", res.Status).
		Str("error_code", res.ErrorCode).
		Str("reason", res.ErrorMsg).
		Msg("条目未处理")
}
