package run

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/John-Robertt/imgthumb/internal/app"
	"github.com/John-Robertt/imgthumb/internal/app/planner"
	"github.com/John-Robertt/imgthumb/internal/config"
	"github.com/John-Robertt/imgthumb/internal/domain"
	"github.com/John-Robertt/imgthumb/internal/infra/fsx"
	"github.com/John-Robertt/imgthumb/internal/infra/imgx"
	"github.com/John-Robertt/imgthumb/internal/scan"
)

// Error 是 run 级别的致命错误（带 error_code）。出现时没有任何条目被分发。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s：%q：%v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s：%q", e.Code, e.Path)
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Execute 执行一次完整的缩略图 run，并返回 RunReport。
//
// 流程：输入目录存在性检查 → 清理/重建输出目录 → 枚举 → 规划输出路径 → 并发分发 → 汇总。
//
// 致命错误（输入目录不存在/不可读、输出目录无法准备）以 *Error 返回，此时不会分发任何条目；
// 其中 input_not_found 保证不触碰输出目录。条目级错误只体现在 RunReport.Items 中。
//
// codec 为 nil 时使用 imgx.New(fsys)；obs 可以为 nil。
func Execute(ctx context.Context, eff config.EffectiveConfig, fsys afero.Fs, codec Codec, obs Observer) (domain.RunReport, error) {
	if codec == nil {
		codec = imgx.New(fsys)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Input:     eff.InputDir,
		Output:    eff.OutputDir,
		StartedAt: time.Now().UTC(),
	}

	// 策略必须在触碰任何文件之前确定。
	strategy, err := app.NewStrategy(eff.Strategy)
	if err != nil {
		return rr, &Error{Code: domain.ErrCodeConfigInvalid, Path: eff.Strategy, Err: err}
	}
	rr.Strategy = strategy.Name()

	if fi, err := fsys.Stat(eff.InputDir); err != nil {
		if os.IsNotExist(err) {
			return rr, &Error{Code: domain.ErrCodeInputNotFound, Path: eff.InputDir, Err: err}
		}
		return rr, &Error{Code: domain.ErrCodeInputUnreadable, Path: eff.InputDir, Err: err}
	} else if !fi.IsDir() {
		return rr, &Error{Code: domain.ErrCodeInputUnreadable, Path: eff.InputDir, Err: &fsx.PathTypeConflictError{Path: eff.InputDir, Want: "dir", Got: "file"}}
	}

	if obs != nil {
		obs.OnStart(rr.RunID, eff)
	}

	prepStarted := time.Now()
	if obs != nil {
		if ok, _ := afero.Exists(fsys, eff.OutputDir); ok {
			obs.OnOutputReset(eff.OutputDir)
		}
	}
	if err := fsx.EnsureClean(fsys, eff.OutputDir); err != nil {
		return rr, &Error{Code: domain.ErrCodeOutputPrepFailed, Path: eff.OutputDir, Err: err}
	}
	if obs != nil {
		obs.OnPhaseDone("prepare", map[string]any{"output": eff.OutputDir}, time.Since(prepStarted))
	}

	scanStarted := time.Now()
	items, err := scan.Enumerate(fsys, eff.InputDir)
	if err != nil {
		return rr, &Error{Code: domain.ErrCodeInputUnreadable, Path: eff.InputDir, Err: err}
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"files": len(items)}, time.Since(scanStarted))
	}

	planStarted := time.Now()
	planned, rejected := planner.PlanBatch(items, eff.OutputDir)
	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{
			"items":      len(planned),
			"collisions": len(rejected),
		}, time.Since(planStarted))
		// 未进入分发的条目：idx 固定为 0。
		for _, r := range rejected {
			obs.OnItemDone(0, len(items), r, 0)
		}
	}

	rr.Workers = app.EffectiveWorkers(eff.Workers, len(planned))

	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     rr.Workers,
			"strategy":    rr.Strategy,
			"total_items": len(planned),
		}, 0)
	}

	execStarted := time.Now()
	var agg Aggregator
	results, err := Distribute(ctx, planned, rr.Workers, strategy, codec, &agg, obs)
	if err != nil {
		return rr, &Error{Code: domain.ErrCodeInternal, Path: eff.InputDir, Err: err}
	}

	rr.Items = make([]domain.ItemResult, 0, len(rejected)+len(results))
	rr.Items = append(rr.Items, rejected...)
	rr.Items = append(rr.Items, results...)
	rr.Processed = agg.Total()
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()

	if obs != nil {
		obs.OnPhaseDone("done", map[string]any{
			"processed": rr.Summary.Processed,
			"skipped":   rr.Summary.Skipped,
			"failed":    rr.Summary.Failed,
			"canceled":  rr.Summary.Canceled,
		}, time.Since(execStarted))
	}
	return rr, nil
}
