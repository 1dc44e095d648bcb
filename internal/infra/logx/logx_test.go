package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "info", false)
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	log.Info().Str("phase", "scan").Msg("done")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, "debug 级别不应输出")

	var m map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &m))
	assert.Equal(t, "scan", m["phase"])
	assert.Equal(t, "done", m["message"])
	assert.Contains(t, m, "time")
}

func TestNew_ConsoleIsPlainForNonTTY(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "debug", true)
	require.NoError(t, err)

	log.Debug().Str("name", "b.txt").Msg("skipped")

	out := buf.String()
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "name=b.txt")
	assert.NotContains(t, out, "\x1b[", "非终端输出不应带 ANSI 颜色")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", true)
	assert.Error(t, err)
}
