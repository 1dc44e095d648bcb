package run

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"

	"github.com/John-Robertt/imgthumb/internal/app"
	"github.com/John-Robertt/imgthumb/internal/domain"
	"github.com/John-Robertt/imgthumb/internal/infra/imgx"
)

// Codec 是 worker 对缩略图能力的最小依赖；nil error 表示成功。
type Codec interface {
	TryThumbnail(src, dst string) error
}

// Distribute 按 strategy 把 items 分给 worker 并发处理，阻塞到所有 worker 结束后返回。
//
// 约束：
// - 每个 worker 处理完自己的来源后，向 agg 贡献一次本地成功计数
// - 单个条目的任何失败（包括 codec panic）都只记录在该条目的结果里，不会中止 worker 或 run
// - ctx 只在条目之间检查；取消后剩余条目记为 canceled，仍然出现在结果中
// - 返回前调用 agg.Seal()，此后 agg.Total() 即为最终计数
//
// 返回的 error 只表示分发本身无法启动（例如 worker pool 创建失败）。
func Distribute(ctx context.Context, items []domain.WorkItem, workers int, strategy app.Strategy, codec Codec, agg *Aggregator, obs Observer) ([]domain.ItemResult, error) {
	sources := strategy.Distribute(items, workers)

	pool, err := ants.NewPool(len(sources))
	if err != nil {
		return nil, errors.Wrap(err, "创建 worker pool 失败")
	}
	defer pool.Release()

	perWorker := make([][]domain.ItemResult, len(sources))
	var (
		wg   sync.WaitGroup
		done atomic.Int64

		// 条目级 panic 已在 processOne 中恢复；这里记录的是 worker 自身的异常（例如 Observer panic）。
		// 该 worker 的计数已经丢失，只能让整个 run 失败，而不是报告一个偏小的总数。
		workerPanic atomic.Value
	)
	for i, src := range sources {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			// 先于 wg.Done 执行：wg.Wait 返回时异常一定已经记录。
			defer func() {
				if r := recover(); r != nil {
					workerPanic.Store(fmt.Sprint(r))
				}
			}()
			perWorker[i] = work(ctx, src, codec, agg, obs, &done, len(items))
		}
		if err := pool.Submit(task); err != nil {
			// pool 已满/已关闭时退化为普通 goroutine：保证每个来源都会被处理。
			go task()
		}
	}

	// barrier：所有 worker 结束后才允许读取汇总结果。
	wg.Wait()
	agg.Seal()

	if p := workerPanic.Load(); p != nil {
		return nil, errors.Errorf("worker 异常退出：%v", p)
	}

	out := make([]domain.ItemResult, 0, len(items))
	for _, rs := range perWorker {
		out = append(out, rs...)
	}
	return out, nil
}

func work(ctx context.Context, src app.Source, codec Codec, agg *Aggregator, obs Observer, done *atomic.Int64, total int) []domain.ItemResult {
	local := 0
	results := make([]domain.ItemResult, 0, 16)

	for {
		it, ok := src.Next()
		if !ok {
			break
		}

		started := time.Now()
		var res domain.ItemResult
		if err := ctx.Err(); err != nil {
			res = itemResult(it, domain.ErrCodeCanceled, err.Error())
		} else {
			res = processOne(codec, it)
		}
		if res.Status == domain.StatusProcessed {
			local++
		}
		results = append(results, res)

		if obs != nil {
			obs.OnItemDone(int(done.Add(1)), total, res, time.Since(started))
		}
	}

	agg.Contribute(local)
	return results
}

// processOne 处理单个条目；codec 的错误与 panic 都被转为条目结果。
func processOne(codec Codec, it domain.WorkItem) (res domain.ItemResult) {
	defer func() {
		if r := recover(); r != nil {
			res = itemResult(it, domain.ErrCodePanic, fmt.Sprint(r))
		}
	}()

	if err := codec.TryThumbnail(it.SrcPath, it.DstPath); err != nil {
		code := imgx.Code(err)
		if code == "" {
			code = domain.ErrCodeWriteFailed
		}
		return itemResult(it, code, err.Error())
	}
	return itemResult(it, "", "")
}

func itemResult(it domain.WorkItem, code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Name:      it.Name,
		Src:       it.SrcPath,
		Dst:       it.DstPath,
		Status:    domain.StatusForError(code),
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}
