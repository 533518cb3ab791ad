package layout

// 渲染后端以毫米为长度单位、以点（pt）为字号单位。
// 本项目约定 1 逻辑像素 = 1 个画布单位（mm），设备像素比通过光栅化分辨率（像素/单位）体现。

// Conversion constants between pt and mm.
const (
	PtToMm = 0.352777
	MmToPt = 1.0 / PtToMm
)

// PxToPt 将逻辑像素字号换算为后端字体所需的点数。
func PxToPt(px float64) float64 { return px * MmToPt }

// PtToPx 是 PxToPt 的逆运算。
func PtToPx(pt float64) float64 { return pt * PtToMm }
