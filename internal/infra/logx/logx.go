package logx

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// New 构造 run 使用的 zerolog.Logger。
//
// - console=true：人类可读格式（ConsoleWriter，15:04:05 时间戳）；仅当 w 是终端时着色
// - console=false：每行一个 JSON 对象
//
// 输出经 SyncWriter 包装：多个 worker 的事件可能并发写入同一个 w。
func New(w io.Writer, level string, console bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), errors.Wrapf(err, "日志级别无效：%q", level)
	}
	if level == "" {
		lvl = zerolog.WarnLevel
	}

	out := zerolog.SyncWriter(w)
	if console {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    !isTTY(w),
		}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
