package imaging

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// ScaleTo 将图片缩放到 width×height 像素（不保持宽高比，由调用方保证）。
// 使用 Catmull-Rom 插值，输出为新的 *image.RGBA，原图不被修改。
func ScaleTo(img image.Image, width, height int) *image.RGBA {
	if img == nil || width <= 0 || height <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// ScaledDimensions 返回按 contain 方式缩放后的像素尺寸。
func ScaledDimensions(srcWidth, srcHeight, targetWidth, targetHeight int) (int, int) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return 0, 0
	}
	scaleX := float64(targetWidth) / float64(srcWidth)
	scaleY := float64(targetHeight) / float64(srcHeight)
	scale := scaleX
	if scaleY < scaleX {
		scale = scaleY
	}
	return int(float64(srcWidth) * scale), int(float64(srcHeight) * scale)
}
