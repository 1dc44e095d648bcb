package app

import (
	"fmt"

	"github.com/John-Robertt/imgthumb/internal/domain"
)

const (
	StrategyChunk = "chunk"
	StrategyQueue = "queue"
)

// Source 是单个 worker 看到的工作来源：反复调用 Next 直到 ok=false。
// 一个 Source 只能被一个 worker 使用。
type Source interface {
	Next() (domain.WorkItem, bool)
}

// Strategy 决定 WorkBatch 如何切分给 worker。
//
// 不变量（所有实现必须遵守）：
// - 返回的 Source 两两不相交且合起来覆盖全部 items：每个 item 恰好被交付一次
// - 返回的 Source 数量 ∈ [1, EffectiveWorkers(workers, len(items))]
type Strategy interface {
	Name() string
	Distribute(items []domain.WorkItem, workers int) []Source
}

// NewStrategy 按名字返回策略；空名字使用 chunk。
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case StrategyChunk, "":
		return Chunked{}, nil
	case StrategyQueue:
		return Queue{}, nil
	default:
		return nil, fmt.Errorf("strategy 只能是 chunk 或 queue，实际是 %q", name)
	}
}

// EffectiveWorkers 计算实际 worker 数：至少 1，且不超过条目数（不启动空闲 worker）。
// 空批次固定为 1。
func EffectiveWorkers(requested, n int) int {
	if n <= 0 {
		return 1
	}
	return min(max(requested, 1), n)
}

// Chunk 把 items 切成连续的、近似等长的分片，分片大小为 ceil(n/workers)。
//
// 注意：分片数可能小于 workers（例如 5 个条目、4 个 worker => 大小 2，共 3 片）。
// 空批次返回 nil。
func Chunk(items []domain.WorkItem, workers int) [][]domain.WorkItem {
	if len(items) == 0 {
		return nil
	}
	workers = EffectiveWorkers(workers, len(items))
	size := (len(items) + workers - 1) / workers

	out := make([][]domain.WorkItem, 0, workers)
	for lo := 0; lo < len(items); lo += size {
		hi := min(lo+size, len(items))
		// 三下标切片：各分片容量互不重叠，append 不会越界写到相邻分片。
		out = append(out, items[lo:hi:hi])
	}
	return out
}

// Chunked 是静态分片策略：分发前一次性切好，worker 之间不再需要任何协调。
type Chunked struct{}

func (Chunked) Name() string { return StrategyChunk }

func (Chunked) Distribute(items []domain.WorkItem, workers int) []Source {
	parts := Chunk(items, workers)
	if len(parts) == 0 {
		return []Source{&sliceSource{}}
	}
	out := make([]Source, 0, len(parts))
	for _, p := range parts {
		out = append(out, &sliceSource{items: p})
	}
	return out
}

type sliceSource struct {
	items []domain.WorkItem
	pos   int
}

func (s *sliceSource) Next() (domain.WorkItem, bool) {
	if s.pos >= len(s.items) {
		return domain.WorkItem{}, false
	}
	it := s.items[s.pos]
	s.pos++
	return it, true
}

// Queue 是动态队列策略：所有 worker 共享一个预先填满并关闭的 channel，谁空闲谁取。
// 文件大小差异大时负载更均衡；channel 接收本身就是同步的“取一个”，每个条目只会被一个 worker 拿到。
type Queue struct{}

func (Queue) Name() string { return StrategyQueue }

func (Queue) Distribute(items []domain.WorkItem, workers int) []Source {
	workers = EffectiveWorkers(workers, len(items))

	ch := make(chan domain.WorkItem, len(items))
	for _, it := range items {
		ch <- it
	}
	close(ch)

	out := make([]Source, workers)
	for i := range out {
		out[i] = chanSource(ch)
	}
	return out
}

type chanSource <-chan domain.WorkItem

func (s chanSource) Next() (domain.WorkItem, bool) {
	it, ok := <-s
	return it, ok
}
