package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/ByLCY/memeforge/apperr"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	data := encodePNG(t, solid(8, 4, color.RGBA{255, 0, 0, 255}))
	img, format, err := Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if format != "png" {
		t.Fatalf("format=%q want png", format)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Fatalf("bounds=%v want 8x4", b)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not an image"), {0x89, 'P', 'N', 'G'}} {
		_, _, err := DecodeBytes(data)
		if !errors.Is(err, apperr.ErrImageDecode) {
			t.Fatalf("data=%q: expected ErrImageDecode, got %v", data, err)
		}
	}
}

func TestDecodeRejectsOversized(t *testing.T) {
	data := make([]byte, MaxImageBytes+1)
	if _, _, err := DecodeBytes(data); !errors.Is(err, apperr.ErrImageDecode) {
		t.Fatalf("expected ErrImageDecode, got %v", err)
	}
}

func TestCheckDrawable(t *testing.T) {
	if err := CheckDrawable(solid(1, 1, color.White)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckDrawable(image.NewRGBA(image.Rect(0, 0, 0, 5))); !errors.Is(err, apperr.ErrImageDecode) {
		t.Fatalf("expected ErrImageDecode, got %v", err)
	}
	if err := CheckDrawable(nil); err == nil {
		t.Fatalf("nil 图片应返回错误")
	}
}

func TestScaleTo(t *testing.T) {
	src := solid(40, 20, color.RGBA{0, 0, 255, 255})
	dst := ScaleTo(src, 10, 5)
	if b := dst.Bounds(); b.Dx() != 10 || b.Dy() != 5 {
		t.Fatalf("bounds=%v want 10x5", b)
	}
	r, g, bl, a := dst.At(5, 2).RGBA()
	if r != 0 || g != 0 || bl>>8 != 255 || a>>8 != 255 {
		t.Fatalf("纯色缩放后颜色变化: %d %d %d %d", r, g, bl, a)
	}
	if same := ScaleTo(src, 40, 20); same.RGBAAt(0, 0) != src.RGBAAt(0, 0) {
		t.Fatalf("同尺寸拷贝颜色不一致")
	}
	if empty := ScaleTo(src, 0, 5); !empty.Bounds().Empty() {
		t.Fatalf("零尺寸应返回空图")
	}
}

func TestScaledDimensions(t *testing.T) {
	w, h := ScaledDimensions(800, 600, 600, 600)
	if w != 600 || h != 450 {
		t.Fatalf("got %dx%d want 600x450", w, h)
	}
	if w, h := ScaledDimensions(0, 10, 100, 100); w != 0 || h != 0 {
		t.Fatalf("got %dx%d want 0x0", w, h)
	}
}

func TestPalettize(t *testing.T) {
	src := solid(6, 6, color.RGBA{255, 255, 255, 255})
	p := Palettize(src, nil)
	if p.Bounds() != src.Bounds() {
		t.Fatalf("bounds=%v want %v", p.Bounds(), src.Bounds())
	}
	if len(p.Palette) != 256 {
		t.Fatalf("palette size=%d want 256", len(p.Palette))
	}
	r, g, b, _ := p.At(3, 3).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Fatalf("white should stay white, got %d %d %d", r>>8, g>>8, b>>8)
	}
}
