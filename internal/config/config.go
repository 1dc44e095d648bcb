package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/John-Robertt/imgthumb/internal/app"
	"github.com/John-Robertt/imgthumb/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段/参数不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	// DefaultWorkers 是并发的内置默认值（CLI 与配置文件都未指定时）。
	DefaultWorkers = 4
	// MaxWorkers 是并发上限；超出截断。
	MaxWorkers      = 32
	DefaultStrategy = app.StrategyChunk
	DefaultLogLevel = "warn"
)

// CLIArgs 是 CLI 暴露的全部入口，并保留“是否显式指定”的信息，
// 这样 CLI 才能覆盖配置文件中的同名字段。
type CLIArgs struct {
	Input  string
	Output string

	// ConfigFile 为空时不读取任何配置文件（也不读环境变量）。
	ConfigFile string

	Workers    int
	WorkersSet bool

	Strategy    string
	StrategySet bool

	LogLevel    string
	LogLevelSet bool

	Report    string
	ReportSet bool
}

// FileConfig 对应可选配置文件（yaml/json/toml，由扩展名决定）的解析结构。
type FileConfig struct {
	Workers  int    `mapstructure:"workers"`
	Strategy string `mapstructure:"strategy"`
	LogLevel string `mapstructure:"log_level"`
	Report   string `mapstructure:"report"`
}

// EffectiveConfig 是合并并规范化后的最终配置；实现层直接消费，不再做二次默认/优先级判断。
type EffectiveConfig struct {
	InputDir  string
	OutputDir string

	Workers  int
	Strategy string
	LogLevel string

	// ReportPath 非空时，run 结束后把 RunReport 以 JSON 写到该路径。
	ReportPath string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	default:
		if e.Path != "" && e.Err != nil {
			return fmt.Sprintf("%s：%q：%v", e.Code, e.Path, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取可选配置文件，并与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：CLI > 配置文件 > 内置默认。
// 相对路径一律以 cwd 为基准转为绝对路径。
func LoadEffective(fsys afero.Fs, cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var fc FileConfig
	cfgPath := ""
	if strings.TrimSpace(cli.ConfigFile) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigFile)
		fc, err = readFileConfig(fsys, cfgPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: err}
			}
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	input := absCleanFrom(cwdAbs, cli.Input)
	output := absCleanFrom(cwdAbs, cli.Output)
	if input == "" || output == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: errors.New("必须同时指定输入目录与输出目录")}
	}
	// 输出目录会被整体删除重建：不能等于输入目录，也不能包含输入目录。
	if input == output || isUnder(input, output) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: output, Err: fmt.Errorf("输出目录不能是输入目录或其上级目录（输入：%q）", input)}
	}

	// workers：CLI > config > 默认；范围 [1, MaxWorkers]，超出截断。
	workers := DefaultWorkers
	if cli.WorkersSet {
		workers = cli.Workers
	} else if fc.Workers != 0 {
		workers = fc.Workers
	}
	if workers < 1 {
		workers = 1
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}

	strategy := pick(cli.StrategySet, cli.Strategy, fc.Strategy, DefaultStrategy)
	if _, err := app.NewStrategy(strategy); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	logLevel := strings.ToLower(pick(cli.LogLevelSet, cli.LogLevel, fc.LogLevel, DefaultLogLevel))
	if _, err := zerolog.ParseLevel(logLevel); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("log_level 无效：%q", logLevel)}
	}

	report := pick(cli.ReportSet, cli.Report, fc.Report, "")
	if report != "" {
		report = absCleanFrom(cwdAbs, report)
		// report 写进输出目录会让输出目录多出一个不对应任何输入的文件。
		if isUnder(report, output) {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: report, Err: fmt.Errorf("report 不能写在输出目录内：%q", output)}
		}
	}

	return EffectiveConfig{
		InputDir:   input,
		OutputDir:  output,
		Workers:    workers,
		Strategy:   strategy,
		LogLevel:   logLevel,
		ReportPath: report,
	}, nil
}

func pick(cliSet bool, cliVal, fileVal, def string) string {
	if cliSet {
		return strings.TrimSpace(cliVal)
	}
	if v := strings.TrimSpace(fileVal); v != "" {
		return v
	}
	return def
}

// readFileConfig 用 viper 读取并解析配置文件（格式由扩展名决定）。
func readFileConfig(fsys afero.Fs, path string) (FileConfig, error) {
	if _, err := fsys.Stat(path); err != nil {
		return FileConfig{}, err
	}

	v := viper.New()
	v.SetFs(fsys)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return FileConfig{}, errors.Wrap(err, "解析配置文件失败")
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return FileConfig{}, errors.Wrap(err, "解码配置字段失败")
	}
	return fc, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute；空串保持为空。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, strings.TrimSuffix(base, sep)+sep)
}
