package imaging

import (
	"image"
	"image/color"
	"image/color/palette"

	"github.com/makeworld-the-better-one/dither/v2"
)

// Palettize 把图片量化到给定调色板，使用 Floyd-Steinberg 误差扩散。
// pal 为空时使用 Plan9 的 256 色调色板。
func Palettize(img image.Image, pal color.Palette) *image.Paletted {
	if len(pal) == 0 {
		pal = palette.Plan9
	}
	d := dither.NewDitherer(pal)
	d.Matrix = dither.FloydSteinberg
	return d.DitherPaletted(img)
}
