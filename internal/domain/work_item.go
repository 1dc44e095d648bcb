package domain

// WorkItem 是一次 run 的最小工作单元：输入目录下的一个顶层文件。
//
// 不变量（实现必须遵守）：
// - 枚举完成后不可变；分发时所有权整体移交给唯一的 worker，不共享
// - Name 是 SrcPath 的 base name（含扩展名原样大小写），用于计算输出路径
// - DstPath 由 planner 填充；枚举阶段为空
type WorkItem struct {
	SrcPath string
	Name    string
	Size    int64
	DstPath string
}
