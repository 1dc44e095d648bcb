package fsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failRenameFs 让 Rename 稳定失败，用于验证临时文件清理。
type failRenameFs struct {
	afero.Fs
}

func (failRenameFs) Rename(oldname, newname string) error { return os.ErrPermission }

func TestEnsureClean_RemovesExistingContent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/out/old.png", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/out/nested/deep.png", []byte("x"), 0o644))

	require.NoError(t, EnsureClean(fsys, "/out"))

	ok, err := afero.DirExists(fsys, "/out")
	require.NoError(t, err)
	assert.True(t, ok, "输出目录必须存在")

	entries, err := afero.ReadDir(fsys, "/out")
	require.NoError(t, err)
	assert.Empty(t, entries, "输出目录必须为空")
}

func TestEnsureClean_CreatesMissing(t *testing.T) {
	fsys := afero.NewMemMapFs()

	require.NoError(t, EnsureClean(fsys, "/a/b/out"))

	ok, err := afero.DirExists(fsys, "/a/b/out")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsureClean_RegularFileIsConflict(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/out", []byte("keep me"), 0o644))

	err := EnsureClean(fsys, "/out")
	require.Error(t, err)

	var pe *OutputPrepError
	require.ErrorAs(t, err, &pe)
	assert.True(t, IsPathTypeConflict(err), "期望 PathTypeConflictError，实际：%T %v", err, err)

	b, err := afero.ReadFile(fsys, "/out")
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(b), "普通文件不应被删除")
}

func TestEnsureClean_ReadOnlyFs(t *testing.T) {
	fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())

	err := EnsureClean(fsys, "/out")
	var pe *OutputPrepError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "create", pe.Op)
}

func TestWriteFileAtomic_SuccessAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()
	fsys := afero.NewOsFs()

	require.NoError(t, WriteFileAtomic(fsys, dir, "a.png", []byte("hello")))
	require.NoError(t, WriteFileAtomic(fsys, dir, "a.png", []byte("world")))

	b, err := os.ReadFile(filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(b), "同名文件必须被覆盖")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".a.png.tmp-"), "临时文件未清理：%q", e.Name())
	}
}

func TestWriteFileAtomic_RenameFail_CleanupTemp(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/out", 0o755))

	err := WriteFileAtomic(failRenameFs{mem}, "/out", "a.png", []byte("hello"))
	require.Error(t, err)

	entries, err := afero.ReadDir(mem, "/out")
	require.NoError(t, err)
	assert.Empty(t, entries, "rename 失败后不应留下任何文件")
}

func TestWriteFileAtomic_TargetIsDir(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/out/a.png", 0o755))

	err := WriteFileAtomic(fsys, "/out", "a.png", []byte("hello"))
	require.Error(t, err)
	assert.True(t, IsPathTypeConflict(err), "期望 PathTypeConflictError，实际：%T %v", err, err)
}
