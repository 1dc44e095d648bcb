package app

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/imgthumb/internal/domain"
)

func TestEffectiveWorkers(t *testing.T) {
	cases := []struct {
		requested, n, want int
	}{
		{4, 10, 4},
		{4, 2, 2},
		{4, 0, 1},
		{0, 0, 1},
		{32, 0, 1},
		{-3, 5, 1},
		{1, 1, 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, EffectiveWorkers(c.requested, c.n), "requested=%d n=%d", c.requested, c.n)
	}
}

func TestChunk_SizesAndOrder(t *testing.T) {
	items := makeItems(10)

	parts := Chunk(items, 4)
	// ceil(10/4)=3 => 3,3,3,1
	require.Len(t, parts, 4)
	assert.Equal(t, []int{3, 3, 3, 1}, lens(parts))

	var flat []string
	for _, p := range parts {
		for _, it := range p {
			flat = append(flat, it.Name)
		}
	}
	assert.Equal(t, names(items), flat, "分片必须连续且保持原顺序")
}

func TestChunk_FewerPartitionsThanWorkers(t *testing.T) {
	// ceil(5/4)=2 => 2,2,1：只有 3 片。
	assert.Equal(t, []int{2, 2, 1}, lens(Chunk(makeItems(5), 4)))
}

func TestChunk_Empty(t *testing.T) {
	assert.Nil(t, Chunk(nil, 4))
}

func TestChunk_AppendDoesNotClobberNeighbour(t *testing.T) {
	items := makeItems(4)
	parts := Chunk(items, 2)

	_ = append(parts[0], domain.WorkItem{Name: "intruder"})
	assert.Equal(t, "f002", parts[1][0].Name)
}

func TestStrategies_EveryItemExactlyOnce(t *testing.T) {
	for _, s := range []Strategy{Chunked{}, Queue{}} {
		for _, workers := range []int{1, 3, 4, 50} {
			t.Run(fmt.Sprintf("%s/%d", s.Name(), workers), func(t *testing.T) {
				items := makeItems(37)
				sources := s.Distribute(items, workers)

				require.GreaterOrEqual(t, len(sources), 1)
				require.LessOrEqual(t, len(sources), EffectiveWorkers(workers, len(items)))

				got := drainConcurrently(sources)
				sort.Strings(got)
				assert.Equal(t, names(items), got)
			})
		}
	}
}

func TestStrategies_EmptyBatchStillOneSource(t *testing.T) {
	for _, s := range []Strategy{Chunked{}, Queue{}} {
		sources := s.Distribute(nil, 4)
		require.Len(t, sources, 1, s.Name())
		_, ok := sources[0].Next()
		assert.False(t, ok)
	}
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyChunk, s.Name())

	s, err = NewStrategy(StrategyQueue)
	require.NoError(t, err)
	assert.Equal(t, StrategyQueue, s.Name())

	_, err = NewStrategy("steal")
	assert.Error(t, err)
}

func drainConcurrently(sources []Source) []string {
	var (
		mu  sync.Mutex
		out []string
		wg  sync.WaitGroup
	)
	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			for {
				it, ok := src.Next()
				if !ok {
					return
				}
				mu.Lock()
				out = append(out, it.Name)
				mu.Unlock()
			}
		}(src)
	}
	wg.Wait()
	return out
}

func makeItems(n int) []domain.WorkItem {
	items := make([]domain.WorkItem, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("f%03d", i)
		items = append(items, domain.WorkItem{SrcPath: "/in/" + name, Name: name})
	}
	return items
}

func names(items []domain.WorkItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func lens(parts [][]domain.WorkItem) []int {
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		out = append(out, len(p))
	}
	return out
}
