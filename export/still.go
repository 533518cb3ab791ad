// Package export 负责把渲染结果编码为可下载的文件格式。
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/ByLCY/memeforge/apperr"
)

// Format 是导出的文件格式。
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
	FormatPDF  Format = "pdf"
)

// DefaultJPEGQuality 与 image/jpeg 的默认质量一致。
const DefaultJPEGQuality = jpeg.DefaultQuality

// Extension 返回不带点的文件扩展名。
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// ContentType 返回对应的 MIME 类型。
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatGIF:
		return "image/gif"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// ParseFormat 解析格式名（大小写不敏感，jpg 等价于 jpeg）。
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "png", "":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "gif":
		return FormatGIF, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: 不支持的格式 %q", apperr.ErrExport, name)
}

// FormatFromPath 根据输出路径的扩展名推断格式。
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("%w: 输出路径缺少扩展名: %s", apperr.ErrExport, path)
	}
	return ParseFormat(ext)
}

// PNG 将图片编码为 PNG。
func PNG(img image.Image) ([]byte, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperr.Wrap(apperr.ErrExport, err, "PNG 编码失败")
	}
	return buf.Bytes(), nil
}

// JPEG 将图片编码为 JPEG；quality 超出 1-100 时使用默认质量。
func JPEG(img image.Image, quality int) ([]byte, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, apperr.Wrap(apperr.ErrExport, err, "JPEG 编码失败")
	}
	return buf.Bytes(), nil
}

// Still 按格式编码静态图片（PNG 或 JPEG）。
func Still(img image.Image, f Format, quality int) ([]byte, error) {
	switch f {
	case FormatPNG:
		return PNG(img)
	case FormatJPEG:
		return JPEG(img, quality)
	}
	return nil, fmt.Errorf("%w: %s 不是静态位图格式", apperr.ErrExport, f)
}

func checkImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: 画布尚未就绪", apperr.ErrExport)
	}
	if b := img.Bounds(); b.Empty() {
		return fmt.Errorf("%w: 图片尺寸为空", apperr.ErrExport)
	}
	return nil
}
