package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/memeforge/config"
	"github.com/ByLCY/memeforge/dsl"
	"github.com/ByLCY/memeforge/export"
	"github.com/ByLCY/memeforge/imaging"
	"github.com/ByLCY/memeforge/layout"
	"github.com/ByLCY/memeforge/logging"
	"github.com/ByLCY/memeforge/renderer"
	canvasrenderer "github.com/ByLCY/memeforge/renderer/canvas"
	"github.com/ByLCY/memeforge/templates"
)

// stringList 收集可重复的 -recipe 参数。
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// job 是一次待执行的渲染：配方加上解析相对路径的基准目录。
type job struct {
	recipe dsl.Recipe
	dir    string
	debug  string
}

type renderEnv struct {
	renderer    *canvasrenderer.Renderer
	client      *http.Client
	jpegQuality int
}

func cmdRender(ctx context.Context, cfg config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	var recipes stringList
	fs.Var(&recipes, "recipe", "配方文件路径（可重复）")
	dataJSON := fs.String("data", "", "绑定到配方的 JSON 数据")
	jobs := fs.Int("jobs", 4, "并发渲染数")
	input := fs.String("in", "", "源图片路径或 URL")
	tpl := fs.String("template", "", "内置模板 id 或名称")
	top := fs.String("top", "", "上方文字")
	bottom := fs.String("bottom", "", "下方文字")
	topY := fs.Float64("top-y", 10, "上方文字位置（%）")
	bottomY := fs.Float64("bottom-y", 90, "下方文字位置（%）")
	fontSize := fs.Float64("font-size", 10, "字号（占绘制宽度的 %）")
	width := fs.Float64("width", cfg.Render.Width, "画布宽度（逻辑像素）")
	height := fs.Float64("height", cfg.Render.Height, "画布高度（逻辑像素）")
	dpr := fs.Float64("dpr", cfg.Render.DPR, "设备像素比")
	output := fs.String("out", "meme.png", "输出路径（.png/.jpg/.gif/.pdf）")
	delay := fs.Duration("delay", cfg.Export.GIFDelay, "GIF 帧延迟")
	debug := fs.String("debug", "", "布局调试 JSON 输出路径")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := newRenderer(cfg)
	if err != nil {
		return err
	}
	env := renderEnv{renderer: r, client: &http.Client{Timeout: 30 * time.Second}, jpegQuality: cfg.Export.JPEGQuality}
	defaults := layout.Size{Width: cfg.Render.Width, Height: cfg.Render.Height}

	var work []job
	if len(recipes) > 0 {
		var data any
		if *dataJSON != "" {
			if err := json.Unmarshal([]byte(*dataJSON), &data); err != nil {
				return fmt.Errorf("解析 data JSON 失败: %w", err)
			}
		}
		for _, path := range recipes {
			compiled, err := loadRecipes(path, data)
			if err != nil {
				return err
			}
			for _, rc := range compiled {
				work = append(work, job{recipe: rc.ApplyDefaults(defaults, cfg.Render.DPR), dir: filepath.Dir(path)})
			}
		}
	} else {
		if *input == "" && *tpl == "" {
			return fmt.Errorf("%w: 需要 -in、-template 或 -recipe", errUsage)
		}
		format, err := export.FormatFromPath(*output)
		if err != nil {
			return err
		}
		p := layout.Params{TopText: *top, BottomText: *bottom, TopTextY: *topY, BottomTextY: *bottomY, FontSizePercent: *fontSize}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		work = append(work, job{
			recipe: dsl.Recipe{
				Name:     "meme",
				Image:    *input,
				Template: *tpl,
				Size:     layout.Size{Width: *width, Height: *height},
				DPR:      *dpr,
				Output:   *output,
				Format:   format,
				Frames:   []dsl.Frame{{Params: p, Delay: *delay}},
			},
			debug: *debug,
		})
	}

	written, err := renderAll(ctx, env, work, *jobs)
	for _, path := range written {
		fmt.Fprintf(stdout, "已生成：%s\n", path)
	}
	return err
}

func loadRecipes(path string, data any) ([]dsl.Recipe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开配方文件 %s: %w", path, err)
	}
	defer f.Close()

	file, err := dsl.ParseNamed(path, f)
	if err != nil {
		return nil, fmt.Errorf("解析配方失败: %w", err)
	}
	recipes, err := dsl.Compile(file, data)
	if err != nil {
		return nil, fmt.Errorf("编译配方失败: %w", err)
	}
	return recipes, nil
}

// renderAll 并发渲染全部任务，最多同时执行 limit 个；返回成功写出的路径（按任务顺序）。
func renderAll(ctx context.Context, env renderEnv, work []job, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1
	}
	results := make([]string, len(work))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, w := range work {
		g.Go(func() error {
			path, err := renderJob(gctx, env, w)
			if err != nil {
				return fmt.Errorf("渲染 %s 失败: %w", w.recipe.Name, err)
			}
			results[i] = path
			return nil
		})
	}
	err := g.Wait()

	written := make([]string, 0, len(results))
	for _, p := range results {
		if p != "" {
			written = append(written, p)
		}
	}
	return written, err
}

func renderJob(ctx context.Context, env renderEnv, w job) (string, error) {
	rc := w.recipe
	log := logging.For(logging.ComponentRecipe).With("recipe", rc.Name)
	start := time.Now()

	img, err := loadSource(ctx, env.client, rc, w.dir)
	if err != nil {
		return "", err
	}
	if w.debug != "" {
		plan := layout.Compute(renderer.ImageSize(img), rc.Size, rc.Frames[0].Params)
		if err := writeDebug(&plan, w.debug); err != nil {
			return "", err
		}
	}

	data, err := encode(env, img, rc)
	if err != nil {
		return "", err
	}
	out := dsl.Resolve(w.dir, rc.Output)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("写入文件失败: %w", err)
	}
	log.Info("rendered", "output", out, "format", rc.Format, "frames", len(rc.Frames), "elapsed", time.Since(start))
	return out, nil
}

// loadSource 依次支持内置模板、远程 URL 与本地文件。
func loadSource(ctx context.Context, client *http.Client, rc dsl.Recipe, dir string) (image.Image, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case rc.Template != "":
		var t templates.Template
		if t, err = templates.Find(rc.Template); err != nil {
			return nil, err
		}
		data, err = templates.Fetch(ctx, client, t)
	case dsl.IsURL(rc.Image):
		data, err = templates.Fetch(ctx, client, templates.Template{ID: rc.Image, Src: rc.Image})
	default:
		path := dsl.Resolve(dir, rc.Image)
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("读取图片 %s 失败: %w", path, err)
		}
	}
	if err != nil {
		return nil, err
	}
	img, _, err := imaging.DecodeBytes(data)
	return img, err
}

// encode 按配方格式输出：PDF 走矢量路径，GIF 逐帧光栅化，其余为单帧位图。
func encode(env renderEnv, img image.Image, rc dsl.Recipe) ([]byte, error) {
	switch rc.Format {
	case export.FormatPDF:
		return env.renderer.RenderPDF(img, rc.Frames[0].Params, rc.Size)
	case export.FormatGIF:
		enc := export.NewGIFEncoder()
		for _, f := range rc.Frames {
			frame, err := rasterize(env.renderer, img, rc, f.Params)
			if err != nil {
				return nil, err
			}
			if err := enc.AddFrame(frame, f.Delay); err != nil {
				return nil, err
			}
		}
		var buf bytes.Buffer
		if err := enc.Encode(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		frame, err := rasterize(env.renderer, img, rc, rc.Frames[0].Params)
		if err != nil {
			return nil, err
		}
		return export.Still(frame, rc.Format, env.jpegQuality)
	}
}

func rasterize(r renderer.Renderer, img image.Image, rc dsl.Recipe, p layout.Params) (*image.RGBA, error) {
	surface := renderer.NewSurface(rc.Size.Width, rc.Size.Height)
	if err := r.Render(surface, img, p, rc.DPR); err != nil {
		return nil, err
	}
	return surface.Snapshot()
}

func writeDebug(plan *layout.Plan, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(plan, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
