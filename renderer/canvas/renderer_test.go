package canvasrenderer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/ByLCY/memeforge/apperr"
	"github.com/ByLCY/memeforge/layout"
	"github.com/ByLCY/memeforge/renderer"
)

var background = color.RGBA{0x1f, 0x29, 0x37, 0xff}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func near(a, b color.RGBA, tol int) bool {
	d := func(x, y uint8) int {
		if x > y {
			return int(x - y)
		}
		return int(y - x)
	}
	return d(a.R, b.R) <= tol && d(a.G, b.G) <= tol && d(a.B, b.B) <= tol && d(a.A, b.A) <= tol
}

func render(t *testing.T, r *Renderer, w, h float64, src image.Image, p layout.Params, dpr float64) *image.RGBA {
	t.Helper()
	s := renderer.NewSurface(w, h)
	if err := r.Render(s, src, p, dpr); err != nil {
		t.Fatalf("render error: %v", err)
	}
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot error: %v", err)
	}
	return snap
}

// 无图片时只绘制背景与占位提示，且不返回错误。
func TestRenderPlaceholderWithoutImage(t *testing.T) {
	r := NewRenderer()
	img := render(t, r, 600, 600, nil, layout.DefaultParams(), 1)
	if b := img.Bounds(); b.Dx() != 600 || b.Dy() != 600 {
		t.Fatalf("bounds=%v want 600x600", b)
	}
	if got := img.RGBAAt(5, 5); !near(got, background, 1) {
		t.Fatalf("corner pixel=%v want background %v", got, background)
	}
	// 占位文字位于中心附近，中心一行内应出现非背景像素
	found := false
	for x := 150; x < 450 && !found; x++ {
		for y := 285; y < 300; y++ {
			if !near(img.RGBAAt(x, y), background, 8) {
				found = true
				break
			}
		}
	}
	if !found {
		t.Fatalf("placeholder text not drawn")
	}
}

// 800x600 图片放入 600x600 容器：上下各 75px 留边。
func TestRenderLetterboxesLandscapeImage(t *testing.T) {
	r := NewRenderer()
	red := color.RGBA{255, 0, 0, 255}
	img := render(t, r, 600, 600, solid(800, 600, red), layout.DefaultParams(), 1)

	if got := img.RGBAAt(300, 30); !near(got, background, 1) {
		t.Fatalf("top band pixel=%v want background", got)
	}
	if got := img.RGBAAt(300, 570); !near(got, background, 1) {
		t.Fatalf("bottom band pixel=%v want background", got)
	}
	if got := img.RGBAAt(300, 300); !near(got, red, 3) {
		t.Fatalf("image pixel=%v want red", got)
	}
	if got := img.RGBAAt(2, 300); !near(got, red, 3) {
		t.Fatalf("image should span full width, pixel=%v", got)
	}
}

func TestRenderHonoursDevicePixelRatio(t *testing.T) {
	r := NewRenderer()
	s := renderer.NewSurface(300, 200)
	if err := r.Render(s, solid(30, 20, color.RGBA{0, 255, 0, 255}), layout.DefaultParams(), 2); err != nil {
		t.Fatalf("render error: %v", err)
	}
	if w, h := s.PixelSize(); w != 600 || h != 400 {
		t.Fatalf("pixel size=%dx%d want 600x400", w, h)
	}
	if s.DPR() != 2 {
		t.Fatalf("dpr=%g want 2", s.DPR())
	}
}

// 相同输入两次渲染必须逐字节一致。
func TestRenderIsIdempotent(t *testing.T) {
	r := NewRenderer()
	src := solid(640, 480, color.RGBA{10, 120, 200, 255})
	p := layout.Params{TopText: "one does not\nsimply", BottomText: "render twice", TopTextY: 10, BottomTextY: 90, FontSizePercent: 12}

	a := render(t, r, 500, 500, src, p, 1.5)
	b := render(t, r, 500, 500, src, p, 1.5)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatalf("two renders with identical input differ")
	}
	c := render(t, NewRenderer(), 500, 500, src, p, 1.5)
	if !bytes.Equal(a.Pix, c.Pix) {
		t.Fatalf("fresh renderer produced different pixels")
	}
}

func TestRenderDrawsCaptions(t *testing.T) {
	r := NewRenderer()
	src := solid(600, 600, color.RGBA{128, 128, 128, 255})
	plain := render(t, r, 600, 600, src, layout.DefaultParams(), 1)

	p := layout.DefaultParams()
	p.TopText = "hello"
	withText := render(t, r, 600, 600, src, p, 1)
	if bytes.Equal(plain.Pix, withText.Pix) {
		t.Fatalf("caption did not change any pixel")
	}

	// 文字只出现在上方锚点附近，下半部分保持原样
	for y := 300; y < 600; y++ {
		for x := 0; x < 600; x += 7 {
			if plain.RGBAAt(x, y) != withText.RGBAAt(x, y) {
				t.Fatalf("unexpected change at (%d,%d)", x, y)
			}
		}
	}
	whiteFound, blackFound := false, false
	for y := 30; y < 90; y++ {
		for x := 150; x < 450; x++ {
			c := withText.RGBAAt(x, y)
			if near(c, color.RGBA{255, 255, 255, 255}, 4) {
				whiteFound = true
			}
			if near(c, color.RGBA{0, 0, 0, 255}, 40) {
				blackFound = true
			}
		}
	}
	if !whiteFound || !blackFound {
		t.Fatalf("expected white fill and dark outline, white=%v black=%v", whiteFound, blackFound)
	}
}

// 空文字不应产生任何叠加痕迹。
// 描边宽度为 fontSize/20，字形外侧露出一半：240px 字号下约 6px 的深色边
func TestRenderStrokesGlyphOutline(t *testing.T) {
	r := NewRenderer()
	p := layout.DefaultParams()
	p.TopText = "I"
	p.FontSizePercent = 20
	img := render(t, r, 1200, 1200, solid(1200, 1200, color.RGBA{128, 128, 128, 255}), p, 1)

	const row = 120
	var runs []int // 依次记录深色段的长度
	dark, sawWhite := 0, false
	for x := 0; x < 1200; x++ {
		c := img.RGBAAt(x, row)
		switch {
		case c.R < 40 && c.G < 40 && c.B < 40:
			dark++
			continue
		case near(c, color.RGBA{255, 255, 255, 255}, 25):
			sawWhite = true
		}
		if dark > 0 {
			runs = append(runs, dark)
			dark = 0
		}
	}
	if !sawWhite {
		t.Fatalf("expected white fill on row %d", row)
	}
	if len(runs) != 2 {
		t.Fatalf("expected dark outline on both sides of the stem, got runs %v", runs)
	}
	for _, n := range runs {
		if n < 3 || n > 8 {
			t.Fatalf("outline band should be about 6px wide, got runs %v", runs)
		}
	}
	if d := runs[0] - runs[1]; d < -1 || d > 1 {
		t.Fatalf("outline should be symmetric, got runs %v", runs)
	}
}

func TestRenderEmptyCaptionsLeaveImageUntouched(t *testing.T) {
	r := NewRenderer()
	src := solid(600, 600, color.RGBA{200, 50, 50, 255})
	p := layout.DefaultParams()
	img := render(t, r, 600, 600, src, p, 1)
	for y := 0; y < 600; y += 5 {
		for x := 0; x < 600; x += 5 {
			if got := img.RGBAAt(x, y); !near(got, color.RGBA{200, 50, 50, 255}, 3) {
				t.Fatalf("pixel (%d,%d)=%v, expected untouched image", x, y, got)
			}
		}
	}
}

func TestRenderUndrawableImageFallsBackToPlaceholder(t *testing.T) {
	r := NewRenderer()
	s := renderer.NewSurface(200, 200)
	p := layout.DefaultParams()
	p.TopText = "never drawn"
	err := r.Render(s, image.NewRGBA(image.Rect(0, 0, 0, 0)), p, 1)
	if !errors.Is(err, apperr.ErrImageDecode) {
		t.Fatalf("expected ErrImageDecode, got %v", err)
	}
	if !s.Ready() {
		t.Fatalf("surface should hold the placeholder state")
	}
	want := render(t, r, 200, 200, nil, p, 1)
	got, _ := s.Snapshot()
	if !bytes.Equal(want.Pix, got.Pix) {
		t.Fatalf("surface should equal the placeholder render")
	}
}

func TestRenderRejectsEmptySurface(t *testing.T) {
	r := NewRenderer()
	if err := r.Render(renderer.NewSurface(0, 100), nil, layout.DefaultParams(), 1); err == nil {
		t.Fatalf("expected error for empty surface")
	}
	if err := r.Render(nil, nil, layout.DefaultParams(), 1); err == nil {
		t.Fatalf("expected error for nil surface")
	}
}

func TestRenderPDF(t *testing.T) {
	r := NewRenderer()
	p := layout.DefaultParams()
	p.BottomText = "vector"
	data, err := r.RenderPDF(solid(40, 30, color.RGBA{0, 0, 255, 255}), p, layout.Size{Width: 400, Height: 300})
	if err != nil {
		t.Fatalf("RenderPDF error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output is not a PDF: %q", data[:min(len(data), 8)])
	}
	if _, err := r.RenderPDF(nil, p, layout.Size{}); !errors.Is(err, apperr.ErrExport) {
		t.Fatalf("expected ErrExport, got %v", err)
	}
}

func TestNewRendererWithOptions(t *testing.T) {
	if _, err := NewRendererWithOptions(Options{Background: "red"}); err == nil {
		t.Fatalf("expected invalid colour error")
	}
	if _, err := NewRendererWithOptions(Options{CaptionFont: Resource{Path: "/nonexistent/font.ttf"}}); err == nil {
		t.Fatalf("expected font read error")
	}
	r, err := NewRendererWithOptions(Options{Background: "#000000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img := render(t, r, 50, 50, solid(50, 50, color.RGBA{0, 0, 0, 0}), layout.DefaultParams(), 1)
	if got := img.RGBAAt(25, 25); !near(got, color.RGBA{0, 0, 0, 255}, 1) {
		t.Fatalf("transparent image over black background = %v", got)
	}
}
