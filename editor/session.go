// Package editor 持有交互式编辑状态，并把输入变化合并为按帧调度的重绘。
package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/ByLCY/memeforge/apperr"
	"github.com/ByLCY/memeforge/caption"
	"github.com/ByLCY/memeforge/export"
	"github.com/ByLCY/memeforge/imaging"
	"github.com/ByLCY/memeforge/layout"
	"github.com/ByLCY/memeforge/logging"
	"github.com/ByLCY/memeforge/renderer"
)

// DefaultFrameInterval 约等于 60Hz。
const DefaultFrameInterval = time.Second / 60

var (
	// ErrStaleImage 表示该次图片加载已被更新的请求取代，结果被丢弃。
	ErrStaleImage = errors.New("image load superseded")
	// ErrBusy 表示上一次配文建议尚未完成。
	ErrBusy = errors.New("caption suggestion already in progress")
)

// Sharer 把导出的图片交给宿主平台的分享能力。
type Sharer interface {
	Share(ctx context.Context, filename string, data []byte) error
}

// Options 配置 Session。
type Options struct {
	Renderer  renderer.Renderer
	Suggester caption.Suggester // 为空时 Suggest 返回 ErrSuggestion
	Sharer    Sharer            // 为空时 Share 返回 ErrUnsupportedCapability
	Size      layout.Size
	DPR       float64
	GIFDelay  time.Duration
	Logger    *slog.Logger
}

// Session 是一个编辑会话。输入方法只修改状态并标记 dirty，
// 真正的绘制只发生在 Frame 中，两次 Frame 之间的任意多次修改只触发一次重绘。
type Session struct {
	renderer  renderer.Renderer
	surface   *renderer.Surface
	suggester caption.Suggester
	sharer    Sharer
	gifDelay  time.Duration
	logger    *slog.Logger

	mu         sync.Mutex
	params     layout.Params
	dpr        float64
	img        image.Image
	imgData    []byte
	generation uint64
	dirty      bool
	suggesting bool
	notice     error
	renders    int

	frameMu sync.Mutex // 保证同一时刻只有一次渲染
}

// NewSession 创建会话，初始参数为 layout.DefaultParams()，并安排首帧绘制占位图。
func NewSession(opts Options) *Session {
	dpr := opts.DPR
	if !(dpr > 0) {
		dpr = 1
	}
	delay := opts.GIFDelay
	if delay <= 0 {
		delay = export.DefaultFrameDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.For(logging.ComponentEditor)
	}
	return &Session{
		renderer:  opts.Renderer,
		surface:   renderer.NewSurface(opts.Size.Width, opts.Size.Height),
		suggester: opts.Suggester,
		sharer:    opts.Sharer,
		gifDelay:  delay,
		logger:    logger,
		params:    layout.DefaultParams(),
		dpr:       dpr,
		dirty:     true,
	}
}

// Surface 返回会话的输出缓冲区。
func (s *Session) Surface() *renderer.Surface { return s.surface }

// Params 返回当前参数快照。
func (s *Session) Params() layout.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// HasImage 表示当前是否有已加载的图片。
func (s *Session) HasImage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img != nil
}

// Dirty 表示是否有尚未绘制的修改。
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Renders 返回已执行的渲染次数。
func (s *Session) Renders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders
}

func (s *Session) update(fn func(p *layout.Params)) {
	s.mu.Lock()
	fn(&s.params)
	s.params = s.params.Clamp()
	s.dirty = true
	s.mu.Unlock()
}

// SetParams 整体替换参数（超出范围的值被夹紧）。
func (s *Session) SetParams(p layout.Params) {
	s.update(func(cur *layout.Params) { *cur = p })
}

func (s *Session) SetTopText(text string) {
	s.update(func(p *layout.Params) { p.TopText = text })
}

func (s *Session) SetBottomText(text string) {
	s.update(func(p *layout.Params) { p.BottomText = text })
}

func (s *Session) SetTopTextY(v float64) {
	s.update(func(p *layout.Params) { p.TopTextY = v })
}

func (s *Session) SetBottomTextY(v float64) {
	s.update(func(p *layout.Params) { p.BottomTextY = v })
}

func (s *Session) SetFontSize(v float64) {
	s.update(func(p *layout.Params) { p.FontSizePercent = v })
}

// Resize 更新容器尺寸与设备像素比。
func (s *Session) Resize(width, height, dpr float64) {
	s.surface.Resize(width, height)
	s.mu.Lock()
	if dpr > 0 {
		s.dpr = dpr
	}
	s.dirty = true
	s.mu.Unlock()
}

// LoadImage 在后台解码 data。完成时若已有更新的加载请求，结果被丢弃并返回 ErrStaleImage。
// 成功后上下文字被清空；失败时记录通知并回到占位状态。返回的 channel 恰好收到一个值。
func (s *Session) LoadImage(ctx context.Context, data []byte) <-chan error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		defer close(done)
		img, format, err := imaging.DecodeBytes(data)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.generation {
			done <- ErrStaleImage
			return
		}
		if err != nil {
			s.img, s.imgData = nil, nil
			s.notice = err
			s.dirty = true
			s.logger.Warn("image load failed", "error", err)
			done <- err
			return
		}
		s.img, s.imgData = img, data
		s.params.TopText, s.params.BottomText = "", ""
		s.notice = nil
		s.dirty = true
		b := img.Bounds()
		s.logger.Debug("image loaded", "format", format, "width", b.Dx(), "height", b.Dy())
		done <- nil
	}()
	return done
}

// SetImage 直接安装已解码的图片（不清空文字），data 为建议配文时发送的原始字节。
func (s *Session) SetImage(img image.Image, data []byte) {
	s.mu.Lock()
	s.generation++
	s.img, s.imgData = img, data
	s.dirty = true
	s.mu.Unlock()
}

// ClearImage 移除当前图片并使进行中的加载失效。
func (s *Session) ClearImage() {
	s.mu.Lock()
	s.generation++
	s.img, s.imgData = nil, nil
	s.dirty = true
	s.mu.Unlock()
}

// Frame 执行一次调度的重绘：若没有待绘制的修改则直接返回 false。
func (s *Session) Frame() (bool, error) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return false, nil
	}
	s.dirty = false
	params, img, dpr := s.params, s.img, s.dpr
	s.mu.Unlock()

	err := s.renderer.Render(s.surface, img, params, dpr)

	s.mu.Lock()
	s.renders++
	if err != nil {
		s.notice = err
	}
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("render failed", "error", err)
	}
	return true, err
}

// Run 以 interval 为周期调用 Frame，直到 ctx 结束。渲染错误只记录不退出。
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, _ = s.Frame()
		}
	}
}

// Snapshot 返回最近一次渲染的像素；尚未渲染时返回 ErrExport。
func (s *Session) Snapshot() (*image.RGBA, error) {
	return s.surface.Snapshot()
}

// ExportPNG 编码当前画面为 PNG。
func (s *Session) ExportPNG() ([]byte, error) {
	img, err := s.Snapshot()
	if err != nil {
		return nil, s.fail(err)
	}
	data, err := export.PNG(img)
	return data, s.fail(err)
}

// ExportGIF 把当前画面编码为单帧循环 GIF。
func (s *Session) ExportGIF() ([]byte, error) {
	img, err := s.Snapshot()
	if err != nil {
		return nil, s.fail(err)
	}
	enc := export.NewGIFEncoder()
	if err := enc.AddFrame(img, s.gifDelay); err != nil {
		return nil, s.fail(err)
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf); err != nil {
		return nil, s.fail(err)
	}
	return buf.Bytes(), nil
}

// Suggest 请求配文建议并在成功时同时替换上下文字。失败时参数保持不变。
func (s *Session) Suggest(ctx context.Context) (caption.Suggestion, error) {
	s.mu.Lock()
	data, gen := s.imgData, s.generation
	switch {
	case s.img == nil || len(data) == 0:
		s.notice = apperr.ErrNoImage
		s.mu.Unlock()
		return caption.Suggestion{}, apperr.ErrNoImage
	case s.suggesting:
		s.mu.Unlock()
		return caption.Suggestion{}, ErrBusy
	case s.suggester == nil:
		err := fmt.Errorf("%w: 未配置配文服务", apperr.ErrSuggestion)
		s.notice = err
		s.mu.Unlock()
		return caption.Suggestion{}, err
	}
	s.suggesting = true
	s.mu.Unlock()

	sug, err := s.suggester.Suggest(ctx, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggesting = false
	if err != nil {
		if !errors.Is(err, apperr.ErrSuggestion) {
			err = apperr.Wrap(apperr.ErrSuggestion, err, "")
		}
		s.notice = err
		s.logger.Warn("caption suggestion failed", "error", err)
		return caption.Suggestion{}, err
	}
	if gen != s.generation {
		return caption.Suggestion{}, ErrStaleImage
	}
	s.params.TopText, s.params.BottomText = sug.TopText, sug.BottomText
	s.dirty = true
	return sug, nil
}

// Suggesting 表示是否有进行中的配文建议。
func (s *Session) Suggesting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggesting
}

// Share 导出 PNG 并交给 Sharer；未提供 Sharer 时返回 ErrUnsupportedCapability。
func (s *Session) Share(ctx context.Context) error {
	if s.sharer == nil {
		return s.fail(fmt.Errorf("%w: 当前环境不支持分享", apperr.ErrUnsupportedCapability))
	}
	data, err := s.ExportPNG()
	if err != nil {
		return err
	}
	if err := s.sharer.Share(ctx, "meme.png", data); err != nil {
		if errors.Is(err, context.Canceled) {
			return err // 用户取消不提示
		}
		return s.fail(apperr.Wrap(apperr.ErrExport, err, "分享失败"))
	}
	return nil
}

// Notice 返回待显示的通知文本；没有通知时 ok 为 false。
func (s *Session) Notice() (msg string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return "", false
	}
	return apperr.Message(s.notice), true
}

// Err 返回最近一次记录的错误。
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// Dismiss 关闭当前通知。
func (s *Session) Dismiss() {
	s.mu.Lock()
	s.notice = nil
	s.mu.Unlock()
}

func (s *Session) fail(err error) error {
	if err == nil {
		return nil
	}
	s.mu.Lock()
	s.notice = err
	s.mu.Unlock()
	return err
}
