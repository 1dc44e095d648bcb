package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/imgthumb/internal/app/run"
	"github.com/John-Robertt/imgthumb/internal/config"
	"github.com/John-Robertt/imgthumb/internal/domain"
	"github.com/John-Robertt/imgthumb/internal/infra/fsx"
	"github.com/John-Robertt/imgthumb/internal/infra/logx"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
	// exitCanceled 表示 run 被信号中断：已完成的条目有效，但还有条目未处理。
	exitCanceled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitError 携带进程退出码；消息已经由命令自己打印。
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

// usageError 表示参数/flag 不合法（退出码 2）。
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }

// execute 运行一次 CLI 并返回退出码；stdout 只承载对外契约行，日志与诊断走 stderr。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(ctx, stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// 其余错误都来自 cobra 的参数解析阶段。
	fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
	fmt.Fprint(stderr, cmd.UsageString())
	return exitUsage
}

func newRootCmd(ctx context.Context, stdout, stderr io.Writer) *cobra.Command {
	var cli config.CLIArgs

	cmd := &cobra.Command{
		Use:   "imgthumb <input-directory> <output-directory>",
		Short: "为目录中的每张图片生成 64x64 以内的缩略图",
		Long: `imgthumb 读取输入目录顶层的所有文件，为能解码的图片生成缩略图（长边不超过 64，
保持比例且不放大），写入输出目录并以同名保存；非图片文件被跳过。

输出目录若已存在会先被整个删除再重建。`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return &usageError{err: err}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.Input, cli.Output = args[0], args[1]
			flags := cmd.Flags()
			cli.WorkersSet = flags.Changed("workers")
			cli.StrategySet = flags.Changed("strategy")
			cli.LogLevelSet = flags.Changed("log-level")
			cli.ReportSet = flags.Changed("report")
			return runThumbnails(ctx, cli, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	f := cmd.Flags()
	f.IntVarP(&cli.Workers, "workers", "w", config.DefaultWorkers, fmt.Sprintf("并发 worker 数（1..%d）", config.MaxWorkers))
	f.StringVar(&cli.Strategy, "strategy", config.DefaultStrategy, "分发策略：chunk|queue")
	f.StringVar(&cli.ConfigFile, "config", "", "配置文件路径（yaml/json/toml）；不指定则不读取任何配置")
	f.StringVar(&cli.LogLevel, "log-level", config.DefaultLogLevel, "日志级别：debug|info|warn|error")
	f.StringVar(&cli.Report, "report", "", "把 RunReport 以 JSON 写到该路径（不能位于输出目录内）")
	return cmd
}

func runThumbnails(ctx context.Context, cli config.CLIArgs, stdout, stderr io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return &exitError{code: exitFatal}
	}

	fsys := afero.NewOsFs()
	eff, err := config.LoadEffective(fsys, cwd, cli)
	if err != nil {
		fmt.Fprintf(stderr, "配置错误（%s）：%v\n", config.Code(err), err)
		return &exitError{code: exitFatal}
	}

	log, err := logx.New(stderr, eff.LogLevel, true)
	if err != nil {
		fmt.Fprintf(stderr, "初始化日志失败：%v\n", err)
		return &exitError{code: exitFatal}
	}

	obs := newConsoleObserver(stdout, log)
	rr, err := run.Execute(ctx, eff, fsys, nil, obs)
	if err != nil {
		if run.Code(err) == domain.ErrCodeInputNotFound {
			// 输入目录不存在不算崩溃：只打印诊断，不处理任何文件。
			fmt.Fprintln(stderr, "Input directory does not exist")
			return nil
		}
		obs.logger().Error().Err(err).Str("error_code", run.Code(err)).Msg("run 中止")
		fmt.Fprintf(stderr, "错误：%v\n", err)
		return &exitError{code: exitFatal}
	}

	fmt.Fprintf(stdout, "Processed %d images\n", rr.Processed)

	if eff.ReportPath != "" {
		if err := writeReport(fsys, eff.ReportPath, rr); err != nil {
			fmt.Fprintf(stderr, "写入 report 失败（%s）：%v\n", domain.ErrCodeReportWriteFailed, err)
			return &exitError{code: exitFatal}
		}
		obs.logger().Info().Str("path", eff.ReportPath).Msg("report 已写入")
	}

	if rr.Summary.Canceled > 0 {
		obs.logger().Warn().Int("canceled", rr.Summary.Canceled).Msg("run 被中断，部分条目未处理")
		fmt.Fprintf(stderr, "已中断：%d 个条目未处理\n", rr.Summary.Canceled)
		return &exitError{code: exitCanceled}
	}
	return nil
}

func writeReport(fsys afero.Fs, path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return errors.Wrap(err, "序列化 RunReport")
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(fsys, filepath.Dir(path), filepath.Base(path), b)
}
