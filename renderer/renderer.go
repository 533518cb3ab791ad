package renderer

import (
	"image"

	"github.com/ByLCY/memeforge/layout"
)

// Renderer 将源图片与排版参数绘制到宿主提供的 Surface 上。
// 每次调用都从清空的画布开始完整重绘；src 为 nil 时只绘制占位提示。
// 源图片无法绘制时返回包装了 apperr.ErrImageDecode 的错误，并让 Surface 停留在占位状态。
type Renderer interface {
	Render(s *Surface, src image.Image, p layout.Params, dpr float64) error
}
