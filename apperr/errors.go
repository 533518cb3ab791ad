// Package apperr 定义各层共享的错误类别。
// 所有错误都通过 fmt.Errorf("%w: ...") 包装这些哨兵值，调用方使用 errors.Is 判断类别。
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrImageDecode 表示源图片无法解码（文件损坏、格式不支持或跨域读取被拒绝）。
	ErrImageDecode = errors.New("image decode failed")
	// ErrSuggestion 表示配文建议服务失败（网络、解析或配额）。
	ErrSuggestion = errors.New("caption suggestion failed")
	// ErrExport 表示导出失败（画布尚未就绪或编码失败）。
	ErrExport = errors.New("export failed")
	// ErrUnsupportedCapability 表示宿主缺少所需的平台能力，例如分享。
	ErrUnsupportedCapability = errors.New("unsupported capability")
	// ErrNoImage 表示操作需要图片但当前没有加载图片。
	ErrNoImage = errors.New("no image loaded")
)

// Wrap 以 kind 为类别包装 err；err 为 nil 时返回 nil。
func Wrap(kind error, err error, msg string) error {
	if err == nil {
		return nil
	}
	if msg == "" {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, msg, err)
}

// Message 返回面向用户的提示文本，用于可关闭的通知。
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrImageDecode):
		return "Couldn't load the image. It might be a CORS issue or an invalid file."
	case errors.Is(err, ErrSuggestion):
		return "Failed to suggest a caption. The AI might be stumped!"
	case errors.Is(err, ErrExport):
		return "An error occurred while exporting the meme."
	case errors.Is(err, ErrUnsupportedCapability):
		return "Sharing is not supported here. Try downloading instead."
	case errors.Is(err, ErrNoImage):
		return "Please select an image first."
	default:
		return "Something went wrong. Please try again."
	}
}
