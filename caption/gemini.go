package caption

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ByLCY/memeforge/apperr"
	"github.com/ByLCY/memeforge/logging"
)

// Prompt 是发送给模型的提示词。
const Prompt = `Analyze this image and suggest a short, funny meme caption. Format the response as a JSON object with "topText" and "bottomText" keys. The text should be concise and impactful, suitable for a meme.`

const (
	DefaultModel    = "gemini-2.5-flash"
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultTimeout  = 20 * time.Second

	maxResponseBytes = 1 << 20
)

// ErrNoAPIKey 表示未配置 API key。
var ErrNoAPIKey = errors.New("missing API key")

// GeminiClient 调用 Gemini generateContent REST 接口。
type GeminiClient struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

var _ Suggester = (*GeminiClient)(nil)

// GeminiOptions 配置 GeminiClient；零值字段使用默认值。
type GeminiOptions struct {
	APIKey     string
	Model      string
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewGeminiClient creates a client. 缺少 API key 时仍可创建，调用 Suggest 时才报错。
func NewGeminiClient(opts GeminiOptions) *GeminiClient {
	c := &GeminiClient{
		apiKey:   strings.TrimSpace(opts.APIKey),
		model:    opts.Model,
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		client:   opts.HTTPClient,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.client = &http.Client{Timeout: timeout}
	}
	return c
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	InlineData *inlineData `json:"inlineData,omitempty"`
	Text       string      `json:"text,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type schema struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]schema `json:"properties,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	ResponseSchema   schema `json:"responseSchema"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newRequest(image []byte) generateRequest {
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return generateRequest{
		Contents: []content{{Parts: []part{
			{InlineData: &inlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(image)}},
			{Text: Prompt},
		}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: schema{
				Type: "OBJECT",
				Properties: map[string]schema{
					"topText":    {Type: "STRING", Description: "The text to display at the top of the meme."},
					"bottomText": {Type: "STRING", Description: "The text to display at the bottom of the meme."},
				},
			},
		},
	}
}

// Suggest 发送图片与提示词，解析返回的第一个候选。
func (c *GeminiClient) Suggest(ctx context.Context, image []byte) (Suggestion, error) {
	if c.apiKey == "" {
		return Suggestion{}, fmt.Errorf("%w: %w", apperr.ErrSuggestion, ErrNoAPIKey)
	}
	if len(image) == 0 {
		return Suggestion{}, fmt.Errorf("%w: %w", apperr.ErrSuggestion, apperr.ErrNoImage)
	}

	payload, err := json.Marshal(newRequest(image))
	if err != nil {
		return Suggestion{}, apperr.Wrap(apperr.ErrSuggestion, err, "编码请求失败")
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Suggestion{}, apperr.Wrap(apperr.ErrSuggestion, err, "创建请求失败")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Suggestion{}, apperr.Wrap(apperr.ErrSuggestion, err, "请求失败")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Suggestion{}, apperr.Wrap(apperr.ErrSuggestion, err, "读取响应失败")
	}
	logging.For(logging.ComponentCaption).Debug("gemini response",
		"status", resp.StatusCode, "model", c.model, "bytes", len(body), "elapsed", time.Since(start))

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Suggestion{}, fmt.Errorf("%w: 服务返回状态 %d", apperr.ErrSuggestion, resp.StatusCode)
		}
		return Suggestion{}, apperr.Wrap(apperr.ErrSuggestion, err, "解析响应失败")
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return Suggestion{}, fmt.Errorf("%w: 服务返回状态 %d: %s", apperr.ErrSuggestion, resp.StatusCode, out.Error.Message)
		}
		return Suggestion{}, fmt.Errorf("%w: 服务返回状态 %d", apperr.ErrSuggestion, resp.StatusCode)
	}
	for _, cand := range out.Candidates {
		var text strings.Builder
		for _, p := range cand.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			return Parse(text.String())
		}
	}
	return Suggestion{}, fmt.Errorf("%w: 响应中没有候选结果", apperr.ErrSuggestion)
}
