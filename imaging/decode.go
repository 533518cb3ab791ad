// Package imaging 负责源图片的解码、缩放与调色板量化。
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/memeforge/apperr"
)

// MaxImageBytes 是单张源图片允许的最大字节数。
const MaxImageBytes = 20 << 20

// MaxImagePixels 限制解码后的像素总数，避免超大图片耗尽内存。
const MaxImagePixels = 64 << 20

// Decode 读取并解码一张图片，返回图片与格式名。
// 损坏、不支持或尺寸为零的图片都会返回包装了 apperr.ErrImageDecode 的错误。
func Decode(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, "", apperr.Wrap(apperr.ErrImageDecode, err, "读取图片失败")
	}
	return DecodeBytes(data)
}

// DecodeBytes 与 Decode 相同，但直接接收字节切片。
func DecodeBytes(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: 图片数据为空", apperr.ErrImageDecode)
	}
	if len(data) > MaxImageBytes {
		return nil, "", fmt.Errorf("%w: 图片超过 %d 字节", apperr.ErrImageDecode, MaxImageBytes)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperr.Wrap(apperr.ErrImageDecode, err, "无法识别图片格式")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: 图片尺寸无效 %dx%d", apperr.ErrImageDecode, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, "", fmt.Errorf("%w: 图片像素过多 %dx%d", apperr.ErrImageDecode, cfg.Width, cfg.Height)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperr.Wrap(apperr.ErrImageDecode, err, "解码图片失败")
	}
	return img, format, nil
}

// CheckDrawable 确认图片非空且尺寸为正。
func CheckDrawable(img image.Image) error {
	if img == nil {
		return errors.New("图片为空")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: 图片尺寸无效 %dx%d", apperr.ErrImageDecode, b.Dx(), b.Dy())
	}
	return nil
}
