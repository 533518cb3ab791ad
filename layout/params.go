package layout

import (
	"fmt"
	"math"
)

// 参数取值范围。
const (
	MinTextY           = 0.0
	MaxTextY           = 100.0
	MinFontSizePercent = 5.0
	MaxFontSizePercent = 20.0
)

// DefaultParams 返回初始参数：上方 10%、下方 90%、字号 10%。
func DefaultParams() Params {
	return Params{
		TopTextY:        10,
		BottomTextY:     90,
		FontSizePercent: 10,
	}
}

// Validate 检查百分比参数是否落在允许范围内。
func (p Params) Validate() error {
	if err := checkRange("topTextY", p.TopTextY, MinTextY, MaxTextY); err != nil {
		return err
	}
	if err := checkRange("bottomTextY", p.BottomTextY, MinTextY, MaxTextY); err != nil {
		return err
	}
	return checkRange("fontSizePercent", p.FontSizePercent, MinFontSizePercent, MaxFontSizePercent)
}

// Clamp 将参数夹到允许范围内（滑块语义），NaN 按默认值处理。
func (p Params) Clamp() Params {
	def := DefaultParams()
	p.TopTextY = clamp(p.TopTextY, MinTextY, MaxTextY, def.TopTextY)
	p.BottomTextY = clamp(p.BottomTextY, MinTextY, MaxTextY, def.BottomTextY)
	p.FontSizePercent = clamp(p.FontSizePercent, MinFontSizePercent, MaxFontSizePercent, def.FontSizePercent)
	return p
}

func checkRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%s 超出范围 [%g, %g]: %g", name, lo, hi, v)
	}
	return nil
}

func clamp(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return math.Min(math.Max(v, lo), hi)
}
