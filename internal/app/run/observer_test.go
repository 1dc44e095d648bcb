package run

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/imgthumb/internal/config"
	"github.com/John-Robertt/imgthumb/internal/domain"
)

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	runID      string
	resets     []string
	phases     []string
	items      []domain.ItemResult
	indexes    []int
}

func (o *recordObserver) OnStart(runID string, eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
	o.runID = runID
}

func (o *recordObserver) OnOutputReset(dir string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resets = append(o.resets, dir)
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, res)
	if idx > 0 {
		o.indexes = append(o.indexes, idx)
	}
}

func TestExecute_EmitsPhaseAndItemEvents(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	out := filepath.Join(root, "out")
	writePNG(t, filepath.Join(in, "a.png"), 100, 100)
	writeFile(t, filepath.Join(in, "b.txt"), "text")
	require.NoError(t, os.MkdirAll(out, 0o755))

	obs := &recordObserver{}
	rr, err := Execute(context.Background(), effFor(in, out, 4, "chunk"), afero.NewOsFs(), nil, obs)
	require.NoError(t, err)

	assert.Equal(t, 1, obs.startCalls)
	assert.Equal(t, rr.RunID, obs.runID)
	assert.Equal(t, []string{out}, obs.resets, "已存在的输出目录必须先通知再删除")
	assert.Equal(t, []string{"prepare", "scan", "plan", "exec", "done"}, obs.phases)
	assert.Len(t, obs.items, 2)
}

func TestExecute_NoResetEventForFreshOutput(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	require.NoError(t, os.MkdirAll(in, 0o755))

	obs := &recordObserver{}
	_, err := Execute(context.Background(), effFor(in, filepath.Join(root, "out"), 4, "queue"), afero.NewOsFs(), nil, obs)
	require.NoError(t, err)
	assert.Empty(t, obs.resets)
}

func TestExecute_MissingInputEmitsNothing(t *testing.T) {
	obs := &recordObserver{}
	_, err := Execute(context.Background(), effFor("/nope/in", "/nope/out", 4, "chunk"), afero.NewMemMapFs(), nil, obs)
	require.Error(t, err)
	assert.Equal(t, 0, obs.startCalls)
	assert.Empty(t, obs.phases)
}
