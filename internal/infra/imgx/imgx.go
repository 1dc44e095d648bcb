package imgx

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/John-Robertt/imgthumb/internal/domain"
	"github.com/John-Robertt/imgthumb/internal/infra/fsx"
)

const (
	// DefaultMaxWidth/DefaultMaxHeight 是缩略图的固定边界（不可配置）。
	DefaultMaxWidth  = 64
	DefaultMaxHeight = 64
)

// sniffLen 是类型嗅探读取的头部长度（filetype 的 matcher 只看文件头）。
const sniffLen = 8192

// Error 是条目级错误（带 error_code），只影响当前文件。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s：%q：%v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s：%q", e.Code, e.Path)
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

// Codec 把一个源文件解码为图片并写出等比缩小的缩略图。
//
// 约束：
// - 缩略图长宽都不超过 MaxWidth×MaxHeight；只缩不放（小图原尺寸输出）
// - 输出格式由目标扩展名决定；扩展名无法识别时沿用源文件的实际格式
// - 解码失败与写入失败都以 *Error 返回，由调用方按条目处理，绝不 panic 到上层
type Codec struct {
	Fs        afero.Fs
	MaxWidth  int
	MaxHeight int
}

// New 返回使用默认 64×64 边界的 Codec。
func New(fsys afero.Fs) Codec {
	return Codec{Fs: fsys, MaxWidth: DefaultMaxWidth, MaxHeight: DefaultMaxHeight}
}

// TryThumbnail 为 src 生成缩略图并写到 dst（已存在则覆盖）。nil 表示成功。
func (c Codec) TryThumbnail(src, dst string) error {
	b, err := afero.ReadFile(c.fs(), src)
	if err != nil {
		return &Error{Code: domain.ErrCodeReadFailed, Path: src, Err: err}
	}

	head := b
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || kind.MIME.Type != "image" {
		return &Error{Code: domain.ErrCodeNotImage, Path: src, Err: err}
	}

	img, err := imaging.Decode(bytes.NewReader(b), imaging.AutoOrientation(true))
	if err != nil {
		return &Error{Code: domain.ErrCodeDecodeFailed, Path: src, Err: err}
	}
	if bd := img.Bounds(); bd.Dx() <= 0 || bd.Dy() <= 0 {
		return &Error{Code: domain.ErrCodeDecodeFailed, Path: src, Err: errors.New("图片尺寸无效")}
	}

	format, err := imaging.FormatFromFilename(dst)
	if err != nil {
		format, err = imaging.FormatFromExtension(kind.Extension)
	}
	if err != nil {
		return &Error{Code: domain.ErrCodeEncodeFailed, Path: dst, Err: err}
	}

	// Fit：等比缩放到边界内；源图本身已在边界内时原样克隆，不会放大。
	thumb := imaging.Fit(img, c.maxWidth(), c.maxHeight(), imaging.Lanczos)

	var out bytes.Buffer
	if err := imaging.Encode(&out, thumb, format, imaging.JPEGQuality(95)); err != nil {
		return &Error{Code: domain.ErrCodeEncodeFailed, Path: dst, Err: err}
	}

	dir, name := filepath.Split(dst)
	if err := fsx.WriteFileAtomic(c.fs(), dir, name, out.Bytes()); err != nil {
		return &Error{Code: domain.ErrCodeWriteFailed, Path: dst, Err: err}
	}
	return nil
}

func (c Codec) fs() afero.Fs {
	if c.Fs == nil {
		return afero.NewOsFs()
	}
	return c.Fs
}

func (c Codec) maxWidth() int {
	if c.MaxWidth <= 0 {
		return DefaultMaxWidth
	}
	return c.MaxWidth
}

func (c Codec) maxHeight() int {
	if c.MaxHeight <= 0 {
		return DefaultMaxHeight
	}
	return c.MaxHeight
}
