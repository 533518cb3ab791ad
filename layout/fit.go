package layout

import (
	"math"
	"strings"
)

const (
	// MinFontSize 是最终字号的下限，保证窄图上的文字仍可读。
	MinFontSize = 16.0
	// LineHeightFactor 为行高与字号之比。
	LineHeightFactor = 1.2
	// StrokeDivisor 决定描边宽度：fontSize / StrokeDivisor。
	StrokeDivisor = 20.0
)

// ComputeFit 按 contain 方式把图片放进容器：整图可见、保持宽高比，并在有余量的轴上居中。
// 任一尺寸非正时返回零值。
func ComputeFit(img, container Size) Fit {
	if img.Empty() || container.Empty() {
		return Fit{}
	}
	imgAspect := img.Aspect()
	containerAspect := container.Aspect()

	if imgAspect > containerAspect {
		// 图片相对更宽：宽度撑满，上下留边
		drawWidth := container.Width
		drawHeight := drawWidth / imgAspect
		return Fit{
			DrawWidth:  drawWidth,
			DrawHeight: drawHeight,
			OffsetX:    0,
			OffsetY:    (container.Height - drawHeight) / 2,
		}
	}
	drawHeight := container.Height
	drawWidth := drawHeight * imgAspect
	return Fit{
		DrawWidth:  drawWidth,
		DrawHeight: drawHeight,
		OffsetX:    (container.Width - drawWidth) / 2,
		OffsetY:    0,
	}
}

// FontSize 以绘制区域宽度为基准计算字号，并保证不小于 MinFontSize。
func FontSize(drawWidth, percent float64) float64 {
	return math.Max(MinFontSize, math.Floor(drawWidth*(percent/100)))
}

// SplitCaption 将文字转为大写并按显式换行拆分。
func SplitCaption(text string) []string {
	lines := strings.Split(strings.ToUpper(text), "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimSuffix(ln, "\r")
	}
	return lines
}

// PlaceCaption 是上下两段文字共用的排版例程：
// 文字块的垂直中点落在 offsetY + drawHeight*yPercent/100 处，每行水平居中。
// 下方文字为多行时同样围绕锚点居中，可能越过图片中线。
func PlaceCaption(fit Fit, fontSize float64, text string, yPercent float64) Caption {
	lines := SplitCaption(text)
	lineHeight := fontSize * LineHeightFactor
	anchorY := fit.OffsetY + fit.DrawHeight*(yPercent/100)
	startY := anchorY - float64(len(lines)-1)*lineHeight/2
	x := fit.CenterX()

	out := Caption{AnchorY: anchorY, Lines: make([]Placement, 0, len(lines))}
	for i, ln := range lines {
		out.Lines = append(out.Lines, Placement{
			Content: ln,
			X:       x,
			Y:       startY + float64(i)*lineHeight,
		})
	}
	return out
}

// ComputeTextPlacement 返回上方与下方文字的全部行位置（先上后下）。
func ComputeTextPlacement(fit Fit, p Params) []Placement {
	fontSize := FontSize(fit.DrawWidth, p.FontSizePercent)
	top := PlaceCaption(fit, fontSize, p.TopText, p.TopTextY)
	bottom := PlaceCaption(fit, fontSize, p.BottomText, p.BottomTextY)
	return append(top.Lines, bottom.Lines...)
}

// Compute 根据图片尺寸、容器尺寸与参数生成完整的排版结果。
// 该函数没有副作用，相同输入总是得到相同结果。
func Compute(img, container Size, p Params) Plan {
	fit := ComputeFit(img, container)
	fontSize := FontSize(fit.DrawWidth, p.FontSizePercent)
	return Plan{
		Container:   container,
		Image:       img,
		Fit:         fit,
		FontSize:    fontSize,
		LineHeight:  fontSize * LineHeightFactor,
		StrokeWidth: fontSize / StrokeDivisor,
		Top:         PlaceCaption(fit, fontSize, p.TopText, p.TopTextY),
		Bottom:      PlaceCaption(fit, fontSize, p.BottomText, p.BottomTextY),
	}
}
