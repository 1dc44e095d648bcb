package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// 致命（setup）错误码：出现即中止整个 run。
const (
	ErrCodeInputNotFound     = "input_not_found"
	ErrCodeInputUnreadable   = "input_unreadable"
	ErrCodeOutputPrepFailed  = "output_prep_failed"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeReportWriteFailed = "report_write_failed"
	ErrCodeInternal          = "internal"
)

// 条目级错误码：只影响单个 WorkItem。
const (
	ErrCodeReadFailed    = "read_failed"
	ErrCodeNotImage      = "not_image"
	ErrCodeDecodeFailed  = "decode_failed"
	ErrCodeEncodeFailed  = "encode_failed"
	ErrCodeWriteFailed   = "write_failed"
	ErrCodeNameCollision = "name_collision"
	ErrCodePanic         = "panic"
	ErrCodeCanceled      = "canceled"
)

// StatusForError 把条目级错误码映射为条目状态。
// “不是图片/解码失败”属于预期内的跳过；其余视为失败（同样不计数、不影响其他条目）。
func StatusForError(code string) string {
	switch code {
	case "":
		return StatusProcessed
	case ErrCodeNotImage, ErrCodeDecodeFailed, ErrCodeReadFailed:
		return StatusSkipped
	case ErrCodeCanceled:
		return StatusCanceled
	default:
		return StatusFailed
	}
}

// RunReport 是一次 run 的完整结果（--report 输出的 JSON 结构）。
//
// Processed 来自结果汇总器（worker 贡献之和）；Summary 由 Items 计算得出。
// 二者必须相等，测试以此校验并发汇总没有丢失/重复计数。
type RunReport struct {
	RunID    string `json:"run_id"`
	Input    string `json:"input"`
	Output   string `json:"output"`
	Workers  int    `json:"workers"`
	Strategy string `json:"strategy"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Processed int           `json:"processed"`
	Summary   ReportSummary `json:"summary"`
	Items     []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`
}

type ItemResult struct {
	Name   string `json:"name"`
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Status string `json:"status"`

	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) items 稳定排序：按 name 字典序（worker 完成顺序不确定，输出必须确定）
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Items == nil {
		r.Items = []ItemResult{}
	}
	sort.SliceStable(r.Items, func(i, j int) bool { return r.Items[i].Name < r.Items[j].Name })

	s := ReportSummary{Total: len(r.Items)}
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusCanceled:
			s.Canceled++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
