package planner

import (
	"fmt"
	"path/filepath"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/John-Robertt/imgthumb/internal/domain"
)

// ResolveOutputPath 返回 item 在输出目录中的目标路径：outDir/<base name>。
func ResolveOutputPath(outDir string, item domain.WorkItem) string {
	return filepath.Join(filepath.Clean(outDir), item.Name)
}

// PlanBatch 为每个 WorkItem 填充 DstPath，并处理输出文件名冲突。
//
// 同一层目录里文件名本身不会重复，但在大小写不敏感或做 Unicode 归一化的输出文件系统上，
// "A.png" 与 "a.png"（或 NFC/NFD 两种写法）会落到同一个输出文件。
// 规则（固定）：按列举顺序先到先得；后来的冲突项作为条目级失败（name_collision）返回，不参与分发。
// 这样保证：不会有两个 worker 写同一路径，且每个输出文件只对应一个输入文件。
func PlanBatch(items []domain.WorkItem, outDir string) (planned []domain.WorkItem, rejected []domain.ItemResult) {
	fold := cases.Fold()
	owner := make(map[string]string, len(items))

	planned = make([]domain.WorkItem, 0, len(items))
	for _, it := range items {
		it.DstPath = ResolveOutputPath(outDir, it)

		key := fold.String(norm.NFC.String(it.Name))
		if first, ok := owner[key]; ok {
			rejected = append(rejected, domain.ItemResult{
				Name:      it.Name,
				Src:       it.SrcPath,
				Dst:       it.DstPath,
				Status:    domain.StatusForError(domain.ErrCodeNameCollision),
				ErrorCode: domain.ErrCodeNameCollision,
				ErrorMsg:  fmt.Sprintf("输出文件名与 %q 冲突（大小写/编码归一化后相同）", first),
			})
			continue
		}
		owner[key] = it.Name
		planned = append(planned, it)
	}
	return planned, rejected
}
