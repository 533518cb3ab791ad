package dsl

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ByLCY/memeforge/binding"
	"github.com/ByLCY/memeforge/export"
	"github.com/ByLCY/memeforge/layout"
)

// Recipe 是编译后的一张表情包描述。
// Size 与 DPR 为零值时由调用方使用自己的默认值（见 ApplyDefaults）。
type Recipe struct {
	Name     string
	Image    string // 本地路径或 http(s) 地址
	Template string // 内置模板 id，与 Image 二选一
	Size     layout.Size
	DPR      float64
	Output   string
	Format   export.Format
	Frames   []Frame
}

// Frame 是动画中的一帧；静态图片只有一帧。
type Frame struct {
	Params layout.Params
	Delay  time.Duration
}

// Animated 在多于一帧或输出为 GIF 时为 true。
func (r Recipe) Animated() bool {
	return len(r.Frames) > 1 || r.Format == export.FormatGIF
}

// ApplyDefaults 用 size 与 dpr 填充未设置的字段。
func (r Recipe) ApplyDefaults(size layout.Size, dpr float64) Recipe {
	if r.Size.Width <= 0 {
		r.Size.Width = size.Width
	}
	if r.Size.Height <= 0 {
		r.Size.Height = size.Height
	}
	if r.DPR <= 0 {
		r.DPR = dpr
	}
	return r
}

// CompileError 指出出错的位置。
type CompileError struct {
	Pos lexer.Position
	Msg string
}

func (e *CompileError) Error() string {
	if e.Pos.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func errorf(pos lexer.Position, format string, args ...any) error {
	return &CompileError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// 允许出现在 meme 块中的键；frame 块只允许 frameKeys。
var (
	memeKeys = map[string]bool{
		"image": true, "template": true, "size": true, "dpr": true,
		"output": true, "format": true,
	}
	frameKeys = map[string]bool{
		"top": true, "bottom": true, "top-y": true, "bottom-y": true,
		"font-size": true, "delay": true,
	}
)

// Compile 校验 AST 并生成配方；字符串值先经过 binding.Interpolate 替换 data 中的值。
func Compile(file *File, data any) ([]Recipe, error) {
	if file == nil {
		return nil, fmt.Errorf("配方为空")
	}
	seen := map[string]bool{}
	out := make([]Recipe, 0, len(file.Memes))
	for _, m := range file.Memes {
		r, err := compileMeme(m, data)
		if err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, errorf(m.Pos, "重复的 meme 名称 %q", r.Name)
		}
		seen[r.Name] = true
		out = append(out, r)
	}
	return out, nil
}

// CompileString 解析并编译配方文本。
func CompileString(input string, data any) ([]Recipe, error) {
	file, err := ParseString(input)
	if err != nil {
		return nil, err
	}
	return Compile(file, data)
}

func compileMeme(m *Meme, data any) (Recipe, error) {
	r := Recipe{Name: strings.TrimSpace(binding.Interpolate(string(m.Name), data))}
	if r.Name == "" {
		return Recipe{}, errorf(m.Pos, "meme 名称不能为空")
	}

	base := frameState{params: layout.DefaultParams(), delay: export.DefaultFrameDelay}
	var frames []*FrameBlock
	assigned := map[string]bool{}
	for _, st := range m.Block.Statements {
		if st.Frame != nil {
			frames = append(frames, st.Frame)
			continue
		}
		a := st.Assignment
		if assigned[a.Key] {
			return Recipe{}, errorf(a.Pos, "键 %q 重复赋值", a.Key)
		}
		assigned[a.Key] = true
		if frameKeys[a.Key] {
			if err := base.apply(a, data); err != nil {
				return Recipe{}, err
			}
			continue
		}
		if err := r.apply(a, data); err != nil {
			return Recipe{}, err
		}
	}

	if err := base.params.Validate(); err != nil {
		return Recipe{}, errorf(m.Pos, "meme %q: %v", r.Name, err)
	}
	if len(frames) == 0 {
		r.Frames = []Frame{{Params: base.params, Delay: base.delay}}
	}
	for _, f := range frames {
		st := base
		keys := map[string]bool{}
		for _, inner := range f.Block.Statements {
			if inner.Frame != nil {
				return Recipe{}, errorf(inner.Frame.Pos, "frame 不能嵌套")
			}
			a := inner.Assignment
			if !frameKeys[a.Key] {
				return Recipe{}, errorf(a.Pos, "frame 中不允许键 %q", a.Key)
			}
			if keys[a.Key] {
				return Recipe{}, errorf(a.Pos, "键 %q 重复赋值", a.Key)
			}
			keys[a.Key] = true
			if err := st.apply(a, data); err != nil {
				return Recipe{}, err
			}
		}
		if err := st.params.Validate(); err != nil {
			return Recipe{}, errorf(f.Pos, "meme %q: %v", r.Name, err)
		}
		r.Frames = append(r.Frames, Frame{Params: st.params, Delay: st.delay})
	}

	if err := r.finish(m.Pos); err != nil {
		return Recipe{}, err
	}
	return r, nil
}

func (r *Recipe) apply(a *Assignment, data any) error {
	if !memeKeys[a.Key] {
		return errorf(a.Pos, "未知的键 %q", a.Key)
	}
	raw := a.Value.Text()
	switch a.Key {
	case "image":
		r.Image = binding.Interpolate(raw, data)
	case "template":
		r.Template = binding.Interpolate(raw, data)
	case "output":
		r.Output = binding.Interpolate(raw, data)
	case "format":
		f, err := export.ParseFormat(raw)
		if err != nil {
			return errorf(a.Pos, "%v", err)
		}
		r.Format = f
	case "size":
		if a.Value.Size == nil {
			return errorf(a.Pos, "size 需要 宽x高 形式，得到 %q", raw)
		}
		w, h, _ := strings.Cut(raw, "x")
		width, _ := strconv.ParseFloat(w, 64)
		height, _ := strconv.ParseFloat(h, 64)
		if width <= 0 || height <= 0 {
			return errorf(a.Pos, "size 必须为正数: %q", raw)
		}
		r.Size = layout.Size{Width: width, Height: height}
	case "dpr":
		v, err := number(a, "x")
		if err != nil {
			return err
		}
		if v <= 0 {
			return errorf(a.Pos, "dpr 必须为正数: %q", raw)
		}
		r.DPR = v
	}
	return nil
}

// finish 检查来源并推断输出格式。
func (r *Recipe) finish(pos lexer.Position) error {
	switch {
	case r.Image == "" && r.Template == "":
		return errorf(pos, "meme %q 缺少 image 或 template", r.Name)
	case r.Image != "" && r.Template != "":
		return errorf(pos, "meme %q 不能同时指定 image 与 template", r.Name)
	}
	if r.Format == "" && r.Output != "" {
		f, err := export.FormatFromPath(r.Output)
		if err != nil {
			return errorf(pos, "meme %q: %v", r.Name, err)
		}
		r.Format = f
	}
	if r.Format == "" {
		r.Format = export.FormatPNG
		if len(r.Frames) > 1 {
			r.Format = export.FormatGIF
		}
	}
	if len(r.Frames) > 1 && r.Format != export.FormatGIF {
		return errorf(pos, "meme %q 含 %d 帧，只能输出 gif", r.Name, len(r.Frames))
	}
	if r.Output == "" {
		r.Output = r.Name + "." + r.Format.Extension()
	}
	return nil
}

type frameState struct {
	params layout.Params
	delay  time.Duration
}

func (s *frameState) apply(a *Assignment, data any) error {
	switch a.Key {
	case "top":
		s.params.TopText = binding.Interpolate(a.Value.Text(), data)
	case "bottom":
		s.params.BottomText = binding.Interpolate(a.Value.Text(), data)
	case "top-y":
		v, err := number(a, "%")
		if err != nil {
			return err
		}
		s.params.TopTextY = v
	case "bottom-y":
		v, err := number(a, "%")
		if err != nil {
			return err
		}
		s.params.BottomTextY = v
	case "font-size":
		v, err := number(a, "%")
		if err != nil {
			return err
		}
		s.params.FontSizePercent = v
	case "delay":
		d, err := duration(a)
		if err != nil {
			return err
		}
		s.delay = d
	}
	return nil
}

// number 解析数值，允许带 unit 后缀（或不带）。
func number(a *Assignment, unit string) (float64, error) {
	if a.Value.Number == nil {
		return 0, errorf(a.Pos, "%s 需要数值，得到 %q", a.Key, a.Value.Text())
	}
	raw := *a.Value.Number
	trimmed := strings.TrimSuffix(raw, unit)
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, errorf(a.Pos, "%s 的单位无效: %q", a.Key, raw)
	}
	return v, nil
}

// duration 支持 500ms、1s 与不带单位的毫秒数。
func duration(a *Assignment) (time.Duration, error) {
	if a.Value.Number == nil {
		return 0, errorf(a.Pos, "delay 需要时长，得到 %q", a.Value.Text())
	}
	raw := *a.Value.Number
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(v * float64(time.Millisecond)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, errorf(a.Pos, "delay 无效: %q", raw)
	}
	return d, nil
}

// Resolve 把配方中的相对路径解析为相对 dir 的路径；绝对路径与 http(s) 地址原样返回。
func Resolve(dir, p string) string {
	if p == "" || dir == "" || filepath.IsAbs(p) || IsURL(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// IsURL 判断 image 是否为远程地址。
func IsURL(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}
