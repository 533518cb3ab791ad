package layout

// 该文件定义排版参数与排版结果，供渲染器、编辑会话与调试 JSON 共用。
// 所有长度均为逻辑像素（CSS 像素），与设备像素比无关。

// Params 是一次渲染的排版参数快照，由调用方持有。
// TopTextY/BottomTextY 为相对绘制区域高度的百分比（0-100），
// FontSizePercent 为相对绘制区域宽度的百分比（5-20）。
type Params struct {
	TopText         string  `json:"topText"`
	BottomText      string  `json:"bottomText"`
	TopTextY        float64 `json:"topTextY"`
	BottomTextY     float64 `json:"bottomTextY"`
	FontSizePercent float64 `json:"fontSizePercent"`
}

// Size 表示逻辑像素下的宽高。
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty 当任一维度非正时返回 true。
func (s Size) Empty() bool { return !(s.Width > 0 && s.Height > 0) }

// Aspect 返回宽高比；空尺寸返回 0。
func (s Size) Aspect() float64 {
	if s.Empty() {
		return 0
	}
	return s.Width / s.Height
}

// Fit 描述图片在容器中的绘制矩形（contain 适配）。
type Fit struct {
	DrawWidth  float64 `json:"drawWidth"`
	DrawHeight float64 `json:"drawHeight"`
	OffsetX    float64 `json:"offsetX"`
	OffsetY    float64 `json:"offsetY"`
}

// CenterX 返回绘制区域的水平中线。
func (f Fit) CenterX() float64 { return f.OffsetX + f.DrawWidth/2 }

// Placement 是一行文字的绘制位置：X 为水平中心，Y 为该行的垂直中心。
type Placement struct {
	Content string  `json:"content"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// Caption 是一段（可能多行）文字排好后的结果。
type Caption struct {
	AnchorY float64     `json:"anchorY"` // 文字块的垂直中点
	Lines   []Placement `json:"lines"`
}

// MidY 返回首行与末行中心的中点；空块返回锚点。
func (c Caption) MidY() float64 {
	if len(c.Lines) == 0 {
		return c.AnchorY
	}
	return (c.Lines[0].Y + c.Lines[len(c.Lines)-1].Y) / 2
}

// Plan 汇总一次渲染的全部排版结果。
type Plan struct {
	Container   Size    `json:"container"`
	Image       Size    `json:"image"`
	Fit         Fit     `json:"fit"`
	FontSize    float64 `json:"fontSize"`
	LineHeight  float64 `json:"lineHeight"`
	StrokeWidth float64 `json:"strokeWidth"`
	Top         Caption `json:"top"`
	Bottom      Caption `json:"bottom"`
}

// Placements 依次返回上方与下方文字的所有行。
func (p Plan) Placements() []Placement {
	out := make([]Placement, 0, len(p.Top.Lines)+len(p.Bottom.Lines))
	out = append(out, p.Top.Lines...)
	return append(out, p.Bottom.Lines...)
}
