package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/rasterizer"

	"github.com/ByLCY/memeforge/apperr"
	"github.com/ByLCY/memeforge/fonts"
	"github.com/ByLCY/memeforge/imaging"
	"github.com/ByLCY/memeforge/layout"
	"github.com/ByLCY/memeforge/renderer"
)

const (
	defaultBackground = "#1f2937"
	placeholderColor  = "#9ca3af"
	placeholderText   = "Your meme will appear here"
	placeholderSizePx = 20.0
	pdfImageScale     = 2.0 // PDF 中位图按 2 倍逻辑像素嵌入
)

// Renderer draws memes via github.com/tdewolff/canvas.
// 画布单位按逻辑像素处理，光栅化分辨率即设备像素比。
type Renderer struct {
	background      color.Color
	fill            color.Color
	stroke          color.Color
	placeholderText string

	// injected resources
	captionFont     []byte
	placeholderFont []byte

	fontMu            sync.Mutex
	captionFamily     *canvas.FontFamily
	placeholderFamily *canvas.FontFamily
}

var _ renderer.Renderer = (*Renderer)(nil)

// Options configures the canvas renderer.
type Options struct {
	Background      string   // 十六进制背景色，默认 #1f2937
	PlaceholderText string   // 无图片时的提示文字
	CaptionFont     Resource // 配文字体，默认内置粗体
	PlaceholderFont Resource // 提示文字字体，默认内置常规体
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

func (res Resource) load(fallback string) ([]byte, error) {
	if len(res.Bytes) > 0 {
		return res.Bytes, nil
	}
	if res.Path != "" {
		data, err := os.ReadFile(res.Path)
		if err != nil {
			return nil, fmt.Errorf("读取字体 %s 失败: %w", res.Path, err)
		}
		return data, nil
	}
	return fonts.Load(fallback)
}

// NewRenderer creates a renderer with default colours and built-in fonts.
func NewRenderer() *Renderer {
	r, _ := NewRendererWithOptions(Options{})
	return r
}

// NewRendererWithOptions creates a renderer with injected resources.
func NewRendererWithOptions(opts Options) (*Renderer, error) {
	bg := opts.Background
	if bg == "" {
		bg = defaultBackground
	}
	background, err := parseHex(bg)
	if err != nil {
		return nil, err
	}
	caption, err := opts.CaptionFont.load(fonts.Bold)
	if err != nil {
		return nil, err
	}
	placeholder, err := opts.PlaceholderFont.load(fonts.Regular)
	if err != nil {
		return nil, err
	}
	text := opts.PlaceholderText
	if text == "" {
		text = placeholderText
	}
	return &Renderer{
		background:      background,
		fill:            canvas.White,
		stroke:          canvas.Black,
		placeholderText: text,
		captionFont:     caption,
		placeholderFont: placeholder,
	}, nil
}

// Render 实现 renderer.Renderer：准备画布、适配图片、绘制上下两段文字，最后光栅化到 Surface。
func (r *Renderer) Render(s *renderer.Surface, src image.Image, p layout.Params, dpr float64) error {
	if s == nil {
		return fmt.Errorf("surface 不能为空")
	}
	size := s.Size()
	if size.Empty() {
		return fmt.Errorf("画布尺寸无效: %gx%g", size.Width, size.Height)
	}
	if !(dpr > 0) || math.IsInf(dpr, 0) {
		dpr = 1
	}

	c := canvas.New(size.Width, size.Height)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 左上角为原点，与浏览器画布一致

	drawErr := r.compose(ctx, size, src, p, dpr)
	s.Commit(rasterizer.Draw(c, canvas.DPMM(dpr), canvas.DefaultColorSpace), dpr)
	return drawErr
}

// RenderPDF 以矢量形式输出同一构图，size 为逻辑像素尺寸（1px 记作 1mm）。
func (r *Renderer) RenderPDF(src image.Image, p layout.Params, size layout.Size) ([]byte, error) {
	if size.Empty() {
		return nil, fmt.Errorf("%w: 画布尺寸无效 %gx%g", apperr.ErrExport, size.Width, size.Height)
	}
	c := canvas.New(size.Width, size.Height)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV)
	if err := r.compose(ctx, size, src, p, pdfImageScale); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := pdf.New(&buf, size.Width, size.Height, nil)
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: 写入 PDF 失败: %v", apperr.ErrExport, err)
	}
	return buf.Bytes(), nil
}

// compose 在 ctx 上完成一次完整绘制。源图片不可绘制时只留下占位状态并返回 ErrImageDecode。
func (r *Renderer) compose(ctx *canvas.Context, size layout.Size, src image.Image, p layout.Params, dpr float64) error {
	r.clear(ctx, size)
	if src == nil {
		return r.drawPlaceholder(ctx, size)
	}
	if err := imaging.CheckDrawable(src); err != nil {
		if perr := r.drawPlaceholder(ctx, size); perr != nil {
			return perr
		}
		return fmt.Errorf("%w: %v", apperr.ErrImageDecode, err)
	}

	plan := layout.Compute(renderer.ImageSize(src), size, p)
	r.drawImage(ctx, src, plan.Fit, dpr)
	return r.drawCaptions(ctx, plan)
}

func (r *Renderer) clear(ctx *canvas.Context, size layout.Size) {
	ctx.SetStrokeColor(color.RGBA{0, 0, 0, 0})
	ctx.SetFillColor(r.background)
	ctx.DrawPath(0, 0, canvas.Rectangle(size.Width, size.Height))
}

func (r *Renderer) drawPlaceholder(ctx *canvas.Context, size layout.Size) error {
	family, err := r.family(&r.placeholderFamily, "memeforge-placeholder", r.placeholderFont)
	if err != nil {
		return err
	}
	col, _ := parseHex(placeholderColor)
	face := family.Face(layout.PxToPt(placeholderSizePx), col, canvas.FontRegular, canvas.FontNormal)
	// 基线位于画布中心（alphabetic 基线）
	ctx.DrawText(size.Width/2, size.Height/2, canvas.NewTextLine(face, r.placeholderText, canvas.Center))
	return nil
}

// drawImage 先用 Catmull-Rom 把源图缩放到物理像素尺寸，再按对应分辨率放到绘制矩形。
func (r *Renderer) drawImage(ctx *canvas.Context, src image.Image, fit layout.Fit, dpr float64) {
	if fit.DrawWidth <= 0 || fit.DrawHeight <= 0 {
		return
	}
	pw := max(1, int(math.Round(fit.DrawWidth*dpr)))
	ph := max(1, int(math.Round(fit.DrawHeight*dpr)))
	scaled := imaging.ScaleTo(src, pw, ph)
	ctx.DrawImage(fit.OffsetX, fit.OffsetY, scaled, canvas.DPMM(float64(pw)/fit.DrawWidth))
}

// drawCaptions 逐行绘制：同一条字形路径先描边后填充，行中心对齐到 Placement 的 (X, Y)。
func (r *Renderer) drawCaptions(ctx *canvas.Context, plan layout.Plan) error {
	placements := plan.Placements()
	if !hasContent(placements) {
		return nil
	}
	family, err := r.family(&r.captionFamily, "memeforge-caption", r.captionFont)
	if err != nil {
		return err
	}
	face := family.Face(layout.PxToPt(plan.FontSize), r.fill, canvas.FontRegular, canvas.FontNormal)

	// 让行的 em 框中点落在 Y 上（等价于 textBaseline = middle）
	metrics := face.Metrics()
	baselineShift := (metrics.Ascent - math.Abs(metrics.Descent)) / 2

	for _, pl := range placements {
		if pl.Content == "" {
			continue
		}
		glyphs, advance, err := face.ToPath(pl.Content)
		if err != nil {
			return fmt.Errorf("生成字形路径失败: %w", err)
		}
		// 字形坐标 y 轴向上，画布是 CartesianIV
		glyphs = glyphs.Transform(canvas.Identity.ReflectY())
		x, y := pl.X-advance/2, pl.Y+baselineShift

		ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
		ctx.SetStrokeColor(r.stroke)
		ctx.SetStrokeWidth(plan.StrokeWidth)
		ctx.SetStrokeJoiner(canvas.MiterJoin)
		ctx.DrawPath(x, y, glyphs)

		ctx.SetStrokeColor(color.RGBA{0, 0, 0, 0})
		ctx.SetFillColor(r.fill)
		ctx.DrawPath(x, y, glyphs)
	}
	return nil
}

func (r *Renderer) family(slot **canvas.FontFamily, name string, data []byte) (*canvas.FontFamily, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	if *slot != nil {
		return *slot, nil
	}
	family := canvas.NewFontFamily(name)
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载字体 %s 失败: %w", name, err)
	}
	*slot = family
	return family, nil
}

func hasContent(placements []layout.Placement) bool {
	for _, pl := range placements {
		if pl.Content != "" {
			return true
		}
	}
	return false
}

func parseHex(s string) (color.Color, error) {
	if len(s) != 4 && len(s) != 7 || s[0] != '#' {
		return nil, fmt.Errorf("无效的颜色值: %q", s)
	}
	for _, ch := range s[1:] {
		if !(ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'f' || ch >= 'A' && ch <= 'F') {
			return nil, fmt.Errorf("无效的颜色值: %q", s)
		}
	}
	return canvas.Hex(s), nil
}
