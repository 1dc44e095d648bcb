package fsx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// PathTypeConflictError 表示目标路径类型冲突（例如期望目录但实际是文件）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// OutputPrepError 表示输出目录无法清理或创建。
// 没有目的地就不可能产出任何缩略图，上层必须把它当作致命错误。
type OutputPrepError struct {
	Dir string
	Op  string // stat | remove | create
	Err error
}

func (e *OutputPrepError) Error() string {
	return fmt.Sprintf("准备输出目录失败（%s）：%q：%v", e.Op, e.Dir, e.Err)
}

func (e *OutputPrepError) Unwrap() error { return e.Err }

// EnsureClean 保证 dir 存在且为空：已存在则递归删除后重建，不存在则直接创建。
//
// 约束：
// - dir 若是普通文件则拒绝删除（PathTypeConflictError），避免误删用户数据
// - 任一步失败都返回 *OutputPrepError
func EnsureClean(fsys afero.Fs, dir string) error {
	dir = filepath.Clean(dir)

	fi, err := fsys.Stat(dir)
	switch {
	case err == nil:
		if !fi.IsDir() {
			return &OutputPrepError{Dir: dir, Op: "stat", Err: &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}}
		}
		if err := fsys.RemoveAll(dir); err != nil {
			return &OutputPrepError{Dir: dir, Op: "remove", Err: err}
		}
	case !os.IsNotExist(err):
		return &OutputPrepError{Dir: dir, Op: "stat", Err: err}
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return &OutputPrepError{Dir: dir, Op: "create", Err: err}
	}
	return nil
}

// WriteFileAtomic 在 dir 下原子写入 name（同目录临时文件 + rename），目标已存在则覆盖。
//
// 缩略图与 report 都走这里：worker 中途失败不会留下半截文件，
// 因此“输出目录中的每个文件都是完整缩略图”这一点始终成立。
func WriteFileAtomic(fsys afero.Fs, dir, name string, data []byte) error {
	dir = filepath.Clean(dir)
	dst := filepath.Join(dir, name)

	if fi, err := fsys.Stat(dst); err == nil && fi.IsDir() {
		return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// 前缀带 '.'，避免临时文件被误认为产物。
	tmp, err := afero.TempFile(fsys, dir, "."+name+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "创建临时文件失败")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = fsys.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return errors.Wrapf(err, "写入临时文件失败：%q", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := fsys.Chmod(tmpName, 0o644); err != nil {
		return err
	}

	if err := fsys.Rename(tmpName, dst); err != nil {
		return errors.Wrapf(err, "重命名到目标失败：%q", dst)
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(fsys, dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(fsys afero.Fs, dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := fsys.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
