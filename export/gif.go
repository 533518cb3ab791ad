package export

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"
	"math"
	"time"

	"github.com/ByLCY/memeforge/apperr"
	"github.com/ByLCY/memeforge/imaging"
)

// DefaultFrameDelay 是单帧 GIF 的默认停留时间。
const DefaultFrameDelay = 500 * time.Millisecond

// AnimationEncoder 收集帧并一次性编码为动画文件。
type AnimationEncoder interface {
	AddFrame(img image.Image, delay time.Duration) error
	Encode(w io.Writer) error
}

// GIFEncoder 使用 Floyd-Steinberg 抖动把帧量化到调色板后编码为循环播放的 GIF。
// 不可并发使用。
type GIFEncoder struct {
	Palette color.Palette // 为空时使用 Plan9 调色板

	frames []*image.Paletted
	delays []int
}

var _ AnimationEncoder = (*GIFEncoder)(nil)

// NewGIFEncoder 创建使用默认调色板的编码器。
func NewGIFEncoder() *GIFEncoder {
	return &GIFEncoder{}
}

// AddFrame 量化并追加一帧；delay 以 1/100 秒为单位取整，非正值按默认延迟处理。
func (e *GIFEncoder) AddFrame(img image.Image, delay time.Duration) error {
	if err := checkImage(img); err != nil {
		return err
	}
	if len(e.frames) > 0 {
		first := e.frames[0].Bounds()
		if b := img.Bounds(); b.Dx() != first.Dx() || b.Dy() != first.Dy() {
			return fmt.Errorf("%w: 帧尺寸不一致 %dx%d != %dx%d", apperr.ErrExport, b.Dx(), b.Dy(), first.Dx(), first.Dy())
		}
	}
	if delay <= 0 {
		delay = DefaultFrameDelay
	}
	e.frames = append(e.frames, imaging.Palettize(img, e.Palette))
	e.delays = append(e.delays, hundredths(delay))
	return nil
}

// Frames 返回已添加的帧数。
func (e *GIFEncoder) Frames() int { return len(e.frames) }

// Encode 写出 GIF；没有任何帧时返回 ErrExport。
// 无限循环标记只在多于一帧时写出，单帧 GIF 解码后 LoopCount 为 -1。
func (e *GIFEncoder) Encode(w io.Writer) error {
	if len(e.frames) == 0 {
		return fmt.Errorf("%w: 没有可编码的帧", apperr.ErrExport)
	}
	anim := &gif.GIF{
		Image:     e.frames,
		Delay:     e.delays,
		LoopCount: 0, // 无限循环
	}
	if err := gif.EncodeAll(w, anim); err != nil {
		return apperr.Wrap(apperr.ErrExport, err, "GIF 编码失败")
	}
	return nil
}

// Reset 丢弃已添加的帧。
func (e *GIFEncoder) Reset() {
	e.frames = nil
	e.delays = nil
}

func hundredths(d time.Duration) int {
	v := int(math.Round(float64(d) / float64(10*time.Millisecond)))
	return max(1, v)
}
