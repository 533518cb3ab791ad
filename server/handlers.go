package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ByLCY/memeforge/apperr"
	"github.com/ByLCY/memeforge/export"
	"github.com/ByLCY/memeforge/imaging"
	"github.com/ByLCY/memeforge/layout"
	"github.com/ByLCY/memeforge/renderer"
	"github.com/ByLCY/memeforge/templates"
)

// renderForm 是 /api/render 与 /api/render/gif 的表单。
// 百分比字段使用指针以区分 "未提供" 与 0。
type renderForm struct {
	TopText    string   `form:"top_text" binding:"max=1000"`
	BottomText string   `form:"bottom_text" binding:"max=1000"`
	TopY       *float64 `form:"top_y" binding:"omitempty,min=0,max=100"`
	BottomY    *float64 `form:"bottom_y" binding:"omitempty,min=0,max=100"`
	FontSize   *float64 `form:"font_size" binding:"omitempty,min=5,max=20"`
	Width      float64  `form:"width" binding:"omitempty,min=1,max=4096"`
	Height     float64  `form:"height" binding:"omitempty,min=1,max=4096"`
	DPR        float64  `form:"dpr" binding:"omitempty,min=0.5,max=4"`
	Format     string   `form:"format" binding:"omitempty,oneof=png jpeg jpg pdf"`
	Template   string   `form:"template" binding:"max=100"`
	DelayMS    int      `form:"delay_ms" binding:"omitempty,min=10,max=60000"`
}

func (f renderForm) params() layout.Params {
	p := layout.DefaultParams()
	p.TopText, p.BottomText = f.TopText, f.BottomText
	if f.TopY != nil {
		p.TopTextY = *f.TopY
	}
	if f.BottomY != nil {
		p.BottomTextY = *f.BottomY
	}
	if f.FontSize != nil {
		p.FontSizePercent = *f.FontSize
	}
	return p
}

func (s *Server) size(f renderForm) (layout.Size, float64) {
	size := s.defaultSize
	if f.Width > 0 {
		size.Width = f.Width
	}
	if f.Height > 0 {
		size.Height = f.Height
	}
	dpr := s.defaultDPR
	if f.DPR > 0 {
		dpr = f.DPR
	}
	return size, dpr
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": templates.All()})
}

func (s *Server) handleShare(c *gin.Context) {
	s.respondError(c, fmt.Errorf("%w: 服务端无法调用分享，请改为下载", apperr.ErrUnsupportedCapability))
}

func (s *Server) bind(c *gin.Context) (renderForm, error) {
	var f renderForm
	if err := c.ShouldBind(&f); err != nil {
		return f, badRequest(err)
	}
	return f, nil
}

// source 读取上传的 image 文件；没有文件时使用 template 指定的内置模板。
func (s *Server) source(c *gin.Context, templateID string) (image.Image, []byte, error) {
	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		file, err := fh.Open()
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.ErrImageDecode, err, "读取上传文件失败")
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, imaging.MaxImageBytes+1))
		if err != nil {
			return nil, nil, apperr.Wrap(apperr.ErrImageDecode, err, "读取上传文件失败")
		}
		img, _, err := imaging.DecodeBytes(data)
		return img, data, err
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		return nil, nil, badRequest(err)
	case templateID == "":
		return nil, nil, apperr.ErrNoImage
	}

	tpl, err := templates.Find(templateID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.fetch(c.Request.Context(), tpl)
	if err != nil {
		return nil, nil, err
	}
	img, _, err := imaging.DecodeBytes(data)
	return img, data, err
}

func (s *Server) rasterize(img image.Image, f renderForm) (*image.RGBA, error) {
	size, dpr := s.size(f)
	surface := renderer.NewSurface(size.Width, size.Height)
	if err := s.renderer.Render(surface, img, f.params(), dpr); err != nil {
		return nil, err
	}
	return surface.Snapshot()
}

func (s *Server) handleRender(c *gin.Context) {
	f, err := s.bind(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	format, err := export.ParseFormat(f.Format)
	if err != nil {
		s.respondError(c, badRequest(err))
		return
	}
	img, _, err := s.source(c, f.Template)
	if err != nil {
		s.respondError(c, err)
		return
	}

	var data []byte
	if format == export.FormatPDF {
		size, _ := s.size(f)
		data, err = s.renderer.RenderPDF(img, f.params(), size)
	} else {
		var out *image.RGBA
		if out, err = s.rasterize(img, f); err == nil {
			data, err = export.Still(out, format, s.jpegQuality)
		}
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	attach(c, format, data)
}

func (s *Server) handleRenderGIF(c *gin.Context) {
	f, err := s.bind(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	img, _, err := s.source(c, f.Template)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out, err := s.rasterize(img, f)
	if err != nil {
		s.respondError(c, err)
		return
	}

	delay := s.gifDelay
	if f.DelayMS > 0 {
		delay = time.Duration(f.DelayMS) * time.Millisecond
	}
	enc := export.NewGIFEncoder()
	var buf bytes.Buffer
	if err := enc.AddFrame(out, delay); err != nil {
		s.respondError(c, err)
		return
	}
	if err := enc.Encode(&buf); err != nil {
		s.respondError(c, err)
		return
	}
	attach(c, export.FormatGIF, buf.Bytes())
}

func (s *Server) handleSuggest(c *gin.Context) {
	_, data, err := s.source(c, c.PostForm("template"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if s.suggester == nil {
		s.respondError(c, fmt.Errorf("%w: 未配置配文服务", apperr.ErrSuggestion))
		return
	}
	sug, err := s.suggester.Suggest(c.Request.Context(), data)
	if err != nil {
		if !errors.Is(err, apperr.ErrSuggestion) {
			err = apperr.Wrap(apperr.ErrSuggestion, err, "")
		}
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sug)
}

func attach(c *gin.Context, format export.Format, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=meme.%s", format.Extension()))
	c.Data(http.StatusOK, format.ContentType(), data)
}
