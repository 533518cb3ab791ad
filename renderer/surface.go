package renderer

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"

	"github.com/ByLCY/memeforge/apperr"
	"github.com/ByLCY/memeforge/layout"
)

// Surface 是宿主持有的输出缓冲区。
// 宿主负责设置逻辑尺寸（容器大小），渲染器在每次渲染时按设备像素比重建像素缓冲。
type Surface struct {
	mu     sync.RWMutex
	size   layout.Size
	dpr    float64
	pixels *image.RGBA
}

// NewSurface 创建逻辑尺寸为 width×height 的画布。
func NewSurface(width, height float64) *Surface {
	return &Surface{size: layout.Size{Width: width, Height: height}, dpr: 1}
}

// Resize 修改逻辑尺寸；旧像素保留到下一次渲染。
func (s *Surface) Resize(width, height float64) {
	s.mu.Lock()
	s.size = layout.Size{Width: width, Height: height}
	s.mu.Unlock()
}

// Size 返回逻辑尺寸。
func (s *Surface) Size() layout.Size {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// DPR 返回最近一次渲染使用的设备像素比。
func (s *Surface) DPR() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dpr
}

// Ready 表示是否已经渲染过至少一次。
func (s *Surface) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pixels != nil
}

// PixelSize 返回物理像素缓冲的宽高。
func (s *Surface) PixelSize() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pixels == nil {
		return 0, 0
	}
	b := s.pixels.Bounds()
	return b.Dx(), b.Dy()
}

// Snapshot 返回当前像素的深拷贝；尚未渲染时返回 apperr.ErrExport。
func (s *Surface) Snapshot() (*image.RGBA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pixels == nil {
		return nil, fmt.Errorf("%w: 画布尚未就绪", apperr.ErrExport)
	}
	out := image.NewRGBA(s.pixels.Bounds())
	draw.Draw(out, out.Bounds(), s.pixels, s.pixels.Bounds().Min, draw.Src)
	return out, nil
}

// Commit 由渲染器调用，替换像素缓冲并记录设备像素比。
func (s *Surface) Commit(pixels *image.RGBA, dpr float64) {
	s.mu.Lock()
	s.pixels = pixels
	s.dpr = dpr
	s.mu.Unlock()
}

// BackingSize 返回逻辑尺寸乘以设备像素比后的物理像素尺寸（四舍五入）。
func BackingSize(size layout.Size, dpr float64) (int, int) {
	if size.Empty() || !(dpr > 0) {
		return 0, 0
	}
	return int(math.Round(size.Width * dpr)), int(math.Round(size.Height * dpr))
}

// ImageSize 返回图片的像素尺寸（作为 layout.Size）；nil 返回零值。
func ImageSize(img image.Image) layout.Size {
	if img == nil {
		return layout.Size{}
	}
	b := img.Bounds()
	return layout.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}
