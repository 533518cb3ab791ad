// Package caption 根据图片向外部模型请求配文建议。
package caption

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ByLCY/memeforge/apperr"
)

// Suggestion 是一组上下配文，缺失的字段为空串。
type Suggestion struct {
	TopText    string `json:"topText"`
	BottomText string `json:"bottomText"`
}

// Suggester 为图片生成配文建议。image 为原始编码字节（JPEG/PNG 等）。
// 失败时返回包装了 apperr.ErrSuggestion 的错误。
type Suggester interface {
	Suggest(ctx context.Context, image []byte) (Suggestion, error)
}

// SuggesterFunc 让普通函数满足 Suggester。
type SuggesterFunc func(ctx context.Context, image []byte) (Suggestion, error)

func (f SuggesterFunc) Suggest(ctx context.Context, image []byte) (Suggestion, error) {
	return f(ctx, image)
}

// Parse 宽松地解析模型返回的 JSON 文本：
// 去掉 Markdown 代码围栏，缺失字段视为空串，非对象或格式错误返回 ErrSuggestion。
func Parse(text string) (Suggestion, error) {
	body := stripFence(strings.TrimSpace(text))
	if body == "" {
		return Suggestion{}, fmt.Errorf("%w: 响应为空", apperr.ErrSuggestion)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Suggestion{}, apperr.Wrap(apperr.ErrSuggestion, err, "响应不是 JSON 对象")
	}
	if raw == nil {
		return Suggestion{}, fmt.Errorf("%w: 响应不是 JSON 对象", apperr.ErrSuggestion)
	}
	return Suggestion{
		TopText:    stringField(raw, "topText"),
		BottomText: stringField(raw, "bottomText"),
	}, nil
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

// stripFence 去掉 ```json ... ``` 包裹。
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // 跳过语言标记
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
