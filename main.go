package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/ByLCY/memeforge/caption"
	"github.com/ByLCY/memeforge/config"
	"github.com/ByLCY/memeforge/imaging"
	"github.com/ByLCY/memeforge/layout"
	"github.com/ByLCY/memeforge/logging"
	canvasrenderer "github.com/ByLCY/memeforge/renderer/canvas"
	"github.com/ByLCY/memeforge/server"
	"github.com/ByLCY/memeforge/templates"
)

const usage = `用法: memeforge <命令> [参数]

命令:
  render     渲染单张表情包或批量渲染配方文件
  suggest    为图片生成配文建议
  templates  列出内置模板
  serve      启动 HTTP 服务

使用 "memeforge <命令> -h" 查看各命令的参数。
`

var errUsage = errors.New("参数错误")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

// run 读取配置、初始化日志并分发子命令。
func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(logging.Options{Level: cfg.Log.Level, NoColor: !cfg.Log.Color})

	switch args[0] {
	case "render":
		return cmdRender(ctx, cfg, args[1:], stdout)
	case "suggest":
		return cmdSuggest(ctx, cfg, args[1:], stdout)
	case "templates":
		return cmdTemplates(stdout)
	case "serve":
		return cmdServe(ctx, cfg, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("%w: 未知命令 %q", errUsage, args[0])
	}
}

func newRenderer(cfg config.Config) (*canvasrenderer.Renderer, error) {
	return canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{Background: cfg.Render.Background})
}

func newSuggester(cfg config.Config) caption.Suggester {
	client := caption.NewGeminiClient(caption.GeminiOptions{
		APIKey:   cfg.Caption.ResolvedAPIKey(),
		Model:    cfg.Caption.Model,
		Endpoint: cfg.Caption.Endpoint,
		Timeout:  cfg.Caption.Timeout,
	})
	return caption.NewLimited(client, cfg.Caption.PerMinute)
}

func cmdSuggest(ctx context.Context, cfg config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	input := fs.String("in", "", "图片路径")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return fmt.Errorf("%w: 缺少 -in", errUsage)
	}
	data, err := os.ReadFile(*input)
	if err != nil {
		return fmt.Errorf("读取图片 %s 失败: %w", *input, err)
	}
	if _, _, err := imaging.DecodeBytes(data); err != nil {
		return err
	}

	sug, err := newSuggester(cfg).Suggest(ctx, data)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sug)
}

func cmdTemplates(stdout io.Writer) error {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSOURCE")
	for _, t := range templates.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Name, t.Src)
	}
	return tw.Flush()
}

func cmdServe(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.Server.Addr, "监听地址")
	if err := fs.Parse(args); err != nil {
		return err
	}
	r, err := newRenderer(cfg)
	if err != nil {
		return err
	}

	logging.InfoWithComponent(logging.ComponentStartup, "starting memeforge server", "addr", *addr, "model", cfg.Caption.Model)
	if cfg.Caption.ResolvedAPIKey() == "" {
		logging.WarnWithComponent(logging.ComponentStartup, "caption suggestion disabled: no API key", "env", cfg.Caption.APIKeyEnv)
	}
	srv := server.New(server.Options{
		Renderer:    r,
		Suggester:   newSuggester(cfg),
		CORSOrigins: cfg.Server.CORSOrigins,
		DefaultSize: layout.Size{Width: cfg.Render.Width, Height: cfg.Render.Height},
		DefaultDPR:  cfg.Render.DPR,
		GIFDelay:    cfg.Export.GIFDelay,
		JPEGQuality: cfg.Export.JPEGQuality,
	})
	if err := srv.ListenAndServe(ctx, *addr); err != nil {
		return fmt.Errorf("HTTP 服务异常退出: %w", err)
	}
	logging.InfoWithComponent(logging.ComponentStartup, "server stopped")
	return nil
}
