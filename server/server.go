// Package server 以 HTTP API 的形式提供渲染、导出与配文建议。
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ByLCY/memeforge/caption"
	"github.com/ByLCY/memeforge/export"
	"github.com/ByLCY/memeforge/imaging"
	"github.com/ByLCY/memeforge/layout"
	"github.com/ByLCY/memeforge/logging"
	canvasrenderer "github.com/ByLCY/memeforge/renderer/canvas"
	"github.com/ByLCY/memeforge/templates"
)

const shutdownTimeout = 30 * time.Second

// TemplateFetcher 下载模板图片的原始字节。
type TemplateFetcher func(ctx context.Context, t templates.Template) ([]byte, error)

// Options 配置 Server；零值字段使用默认值。
type Options struct {
	Renderer    *canvasrenderer.Renderer
	Suggester   caption.Suggester // 为空时 /api/suggest 返回 502
	Fetch       TemplateFetcher   // 默认 templates.Fetch
	CORSOrigins []string          // 为空或包含 "*" 时允许所有来源
	DefaultSize layout.Size
	DefaultDPR  float64
	GIFDelay    time.Duration
	JPEGQuality int
	Logger      *slog.Logger
}

// Server 持有路由与依赖。
type Server struct {
	router      *gin.Engine
	renderer    *canvasrenderer.Renderer
	suggester   caption.Suggester
	fetch       TemplateFetcher
	defaultSize layout.Size
	defaultDPR  float64
	gifDelay    time.Duration
	jpegQuality int
	logger      *slog.Logger
}

// New 创建服务器并注册路由。
func New(opts Options) *Server {
	s := &Server{
		renderer:    opts.Renderer,
		suggester:   opts.Suggester,
		fetch:       opts.Fetch,
		defaultSize: opts.DefaultSize,
		defaultDPR:  opts.DefaultDPR,
		gifDelay:    opts.GIFDelay,
		jpegQuality: opts.JPEGQuality,
		logger:      opts.Logger,
	}
	if s.renderer == nil {
		s.renderer = canvasrenderer.NewRenderer()
	}
	if s.fetch == nil {
		client := &http.Client{Timeout: 30 * time.Second}
		s.fetch = func(ctx context.Context, t templates.Template) ([]byte, error) {
			return templates.Fetch(ctx, client, t)
		}
	}
	if s.defaultSize.Empty() {
		s.defaultSize = layout.Size{Width: 600, Height: 600}
	}
	if !(s.defaultDPR > 0) {
		s.defaultDPR = 1
	}
	if s.gifDelay <= 0 {
		s.gifDelay = export.DefaultFrameDelay
	}
	if s.jpegQuality <= 0 {
		s.jpegQuality = export.DefaultJPEGQuality
	}
	if s.logger == nil {
		s.logger = logging.For(logging.ComponentServer)
	}
	registerFormTagNames()

	router := gin.New()
	router.MaxMultipartMemory = imaging.MaxImageBytes
	router.Use(requestID(), accessLog(s.logger), gin.Recovery())
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))

	router.GET("/healthz", s.handleHealth)
	api := router.Group("/api")
	{
		api.GET("/templates", s.handleTemplates)
		api.POST("/render", s.handleRender)
		api.POST("/render/gif", s.handleRenderGIF)
		api.POST("/suggest", s.handleSuggest)
		api.POST("/share", s.handleShare)
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	s.router = router
	return s
}

// Handler 返回 http.Handler，便于测试或嵌入。
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe 监听 addr，直到 ctx 结束后优雅关闭。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", requestIDHeader}
	cfg.ExposeHeaders = []string{"Content-Disposition", requestIDHeader}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
