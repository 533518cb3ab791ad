package export

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ByLCY/memeforge/apperr"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 128, 255})
		}
	}
	return img
}

func TestPNGRoundTrip(t *testing.T) {
	src := gradient(40, 30)
	data, err := PNG(src)
	require.NoError(t, err)

	got, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, src.Bounds(), got.Bounds())
	require.Equal(t, src.At(10, 10), color.RGBAModel.Convert(got.At(10, 10)))
}

func TestJPEGQualityFallback(t *testing.T) {
	src := gradient(64, 64)
	low, err := JPEG(src, 5)
	require.NoError(t, err)
	high, err := JPEG(src, 100)
	require.NoError(t, err)
	require.Less(t, len(low), len(high))

	def, err := JPEG(src, 0)
	require.NoError(t, err)
	_, err = jpeg.Decode(bytes.NewReader(def))
	require.NoError(t, err)
}

func TestStillRejectsMissingImage(t *testing.T) {
	_, err := PNG(nil)
	require.ErrorIs(t, err, apperr.ErrExport)

	_, err = JPEG(image.NewRGBA(image.Rect(0, 0, 0, 0)), 90)
	require.ErrorIs(t, err, apperr.ErrExport)

	_, err = Still(gradient(4, 4), FormatGIF, 0)
	require.ErrorIs(t, err, apperr.ErrExport)
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"png": FormatPNG, "PNG": FormatPNG, "": FormatPNG,
		".jpg": FormatJPEG, "jpeg": FormatJPEG,
		"gif": FormatGIF, "pdf": FormatPDF,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseFormat("webp")
	require.ErrorIs(t, err, apperr.ErrExport)

	f, err := FormatFromPath("out/monday.JPEG")
	require.NoError(t, err)
	require.Equal(t, FormatJPEG, f)
	require.Equal(t, "jpg", f.Extension())
	require.Equal(t, "image/jpeg", f.ContentType())

	_, err = FormatFromPath("out/monday")
	require.ErrorIs(t, err, apperr.ErrExport)
}

func TestGIFEncoderSingleFrame(t *testing.T) {
	enc := NewGIFEncoder()
	require.NoError(t, enc.AddFrame(gradient(32, 24), DefaultFrameDelay))
	require.Equal(t, 1, enc.Frames())

	var buf bytes.Buffer
	require.NoError(t, enc.Encode(&buf))

	anim, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	require.Len(t, anim.Image, 1)
	require.Equal(t, []int{50}, anim.Delay)
	// 单帧不写 NETSCAPE 扩展
	require.Equal(t, -1, anim.LoopCount)
	require.Equal(t, 32, anim.Image[0].Bounds().Dx())
}

func TestGIFEncoderMultipleFrames(t *testing.T) {
	enc := NewGIFEncoder()
	require.NoError(t, enc.AddFrame(gradient(16, 16), time.Second))
	require.NoError(t, enc.AddFrame(gradient(16, 16), 0))
	require.NoError(t, enc.AddFrame(gradient(16, 16), 3*time.Millisecond))

	var buf bytes.Buffer
	require.NoError(t, enc.Encode(&buf))
	anim, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	require.Equal(t, []int{100, 50, 1}, anim.Delay)
	require.Equal(t, 0, anim.LoopCount)
}

func TestGIFEncoderErrors(t *testing.T) {
	enc := NewGIFEncoder()
	var buf bytes.Buffer
	require.ErrorIs(t, enc.Encode(&buf), apperr.ErrExport)

	require.NoError(t, enc.AddFrame(gradient(10, 10), 0))
	require.ErrorIs(t, enc.AddFrame(gradient(11, 10), 0), apperr.ErrExport)
	require.ErrorIs(t, enc.AddFrame(nil, 0), apperr.ErrExport)

	enc.Reset()
	require.Zero(t, enc.Frames())
}
