// Package templates 提供内置的经典表情包底图。
package templates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ByLCY/memeforge/apperr"
	"github.com/ByLCY/memeforge/imaging"
)

// Template 是一张可选底图。
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Src  string `json:"src"`
}

// MaxDistance 是模糊匹配允许的最大编辑距离。
const MaxDistance = 4

// ErrNotFound 表示没有匹配的模板。
var ErrNotFound = errors.New("template not found")

var builtin = []Template{
	{ID: "distracted-boyfriend", Name: "Distracted Boyfriend", Src: "https://i.imgur.com/v28hG1R.jpg"},
	{ID: "drake-hotline-bling", Name: "Drake Hotline Bling", Src: "https://i.imgur.com/I76r41a.jpg"},
	{ID: "woman-yelling-at-cat", Name: "Woman Yelling at a Cat", Src: "https://i.imgur.com/3c89f5k.jpg"},
	{ID: "two-buttons", Name: "Two Buttons", Src: "https://i.imgur.com/NVIhV4I.jpg"},
}

// All 返回内置模板的副本。
func All() []Template {
	out := make([]Template, len(builtin))
	copy(out, builtin)
	return out
}

// Find 依次尝试 id 精确匹配、id 前缀匹配，最后按 id 或名称的编辑距离取最接近的一项。
func Find(query string) (Template, error) {
	q := normalize(query)
	if q == "" {
		return Template{}, fmt.Errorf("%w: 查询为空", ErrNotFound)
	}
	for _, t := range builtin {
		if strings.HasPrefix(t.ID, q) {
			return t, nil
		}
	}
	best, bestDist := -1, MaxDistance+1
	for i, t := range builtin {
		for _, candidate := range []string{t.ID, normalize(t.Name)} {
			if d := levenshtein.ComputeDistance(q, candidate); d < bestDist {
				best, bestDist = i, d
			}
		}
	}
	if best < 0 {
		return Template{}, fmt.Errorf("%w: %q", ErrNotFound, query)
	}
	return builtin[best], nil
}

// normalize 转小写并把空白与下划线替换为连字符，使 "Two Buttons" 与 two-buttons 可比较。
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '\t'
	}), "-")
}

// Fetch 下载模板图片的原始字节，超过 imaging.MaxImageBytes 视为解码失败。
func Fetch(ctx context.Context, client *http.Client, t Template) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Src, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrImageDecode, err, "创建请求失败")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrImageDecode, err, "下载模板失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: 模板 %s 返回状态 %d", apperr.ErrImageDecode, t.ID, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, imaging.MaxImageBytes+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrImageDecode, err, "读取模板失败")
	}
	if len(data) > imaging.MaxImageBytes {
		return nil, fmt.Errorf("%w: 模板 %s 超过 %d 字节", apperr.ErrImageDecode, t.ID, imaging.MaxImageBytes)
	}
	return data, nil
}
