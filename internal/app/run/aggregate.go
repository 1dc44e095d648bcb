package run

import "sync"

// Aggregator 汇总各 worker 的成功计数。
//
// 约束：
// - 每个 worker 在处理完自己的全部条目后调用一次 Contribute（不是每个条目一次，减少锁竞争）
// - 分发器在 barrier（所有 worker 结束）之后调用 Seal；Seal 之后才允许 Total
// - 违反上述时序属于编程错误，直接 panic
type Aggregator struct {
	mu            sync.Mutex
	total         int
	contributions int
	sealed        bool
}

// Contribute 把一个 worker 的本地计数并入总数。并发安全。
func (a *Aggregator) Contribute(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		panic("run: Aggregator.Contribute called after Seal")
	}
	a.total += n
	a.contributions++
}

// Seal 标记所有 worker 已结束；此后不再接受贡献。
func (a *Aggregator) Seal() {
	a.mu.Lock()
	a.sealed = true
	a.mu.Unlock()
}

// Total 返回最终总数。必须在 Seal 之后调用。
func (a *Aggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.sealed {
		panic("run: Aggregator.Total called before Seal")
	}
	return a.total
}

// Contributions 返回已贡献的 worker 数（用于校验“每个 worker 恰好一次”）。
func (a *Aggregator) Contributions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.contributions
}
