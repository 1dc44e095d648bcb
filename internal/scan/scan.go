package scan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/John-Robertt/imgthumb/internal/domain"
)

// DirectoryReadError 表示输入目录无法列出（权限不足、在存在性检查之后消失等）。
// 没有可处理的工作，上层必须把它当作致命错误。
type DirectoryReadError struct {
	Dir string
	Err error
}

func (e *DirectoryReadError) Error() string {
	return fmt.Sprintf("读取输入目录失败：%q：%v", e.Dir, e.Err)
}

func (e *DirectoryReadError) Unwrap() error { return e.Err }

// Enumerate 列出 inputDir 的直接子项，并产出候选 WorkItem 序列。
//
// 规则（硬约束）：
// - 只列一层，绝不递归；子目录静默跳过（不是错误）
// - 指向目录的符号链接同样视为子目录跳过；悬空链接保留，由 codec 按条目失败处理
// - 只列一次目录：同一 run 的 WorkBatch 完全来自这一次列举
//
// afero.ReadDir 按文件名排序，因此输出顺序在同一文件系统状态下是确定的。
func Enumerate(fsys afero.Fs, inputDir string) ([]domain.WorkItem, error) {
	dir := filepath.Clean(inputDir)

	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, &DirectoryReadError{Dir: dir, Err: err}
	}

	items := make([]domain.WorkItem, 0, len(entries))
	for _, fi := range entries {
		path := filepath.Join(dir, fi.Name())
		if isDir(fsys, path, fi) {
			continue
		}
		items = append(items, domain.WorkItem{
			SrcPath: path,
			Name:    fi.Name(),
			Size:    fi.Size(),
		})
	}
	return items, nil
}

func isDir(fsys afero.Fs, path string, fi os.FileInfo) bool {
	if fi.IsDir() {
		return true
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return false
	}
	target, err := fsys.Stat(path)
	if err != nil {
		return false
	}
	return target.IsDir()
}
