package run

import (
	"time"

	"github.com/John-Robertt/imgthumb/internal/config"
	"github.com/John-Robertt/imgthumb/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出
// - Observer 的实现必须并发安全：OnItemDone 来自多个 worker goroutine
type Observer interface {
	// OnStart 在输入目录确认存在之后、触碰输出目录之前调用。
	OnStart(runID string, eff config.EffectiveConfig)
	// OnOutputReset 在删除已存在的输出目录之前调用。
	OnOutputReset(dir string)
	// OnPhaseDone 在阶段结束/就绪时调用（scan/plan/exec/done）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在单个条目处理完成时调用（成功、跳过、失败都会调用）。
	OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration)
}
