// Package openai 實作 OpenAI 相容的 /chat/completions 補全供應商
// （OpenAI、OpenRouter 等）。
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sipcheck/internal/core/ai/provider"
	"sipcheck/internal/infrastructure/config"
	"sipcheck/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	defaultModel    = "gpt-4o"
	defaultTimeout  = 60 * time.Second
	maxLoggedBody   = 512
	completionsPath = "/chat/completions"
)

// Client OpenAI 相容 API 客戶端
type Client struct {
	client *resty.Client
	model  string
}

// request 表示 API 請求
type request struct {
	Model     string           `json:"model"`
	Messages  []common.Message `json:"messages"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

// response 回應結構
type response struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []choice       `json:"choices"`
	Usage   provider.Usage `json:"usage"`
	Error   *apiError      `json:"error,omitempty"`
}

type choice struct {
	Message struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
}

// apiError 表示 API 錯誤
type apiError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"`
}

type errorEnvelope struct {
	Error *apiError `json:"error"`
}

// NewClient 創建新的客戶端
func NewClient(cfg config.CompletionConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.Referer != "" {
		client.SetHeader("HTTP-Referer", cfg.Referer)
	}
	if cfg.Title != "" {
		client.SetHeader("X-Title", cfg.Title)
	}

	return &Client{
		client: client,
		model:  model,
	}
}

// GetModel 獲取模型名稱
func (c *Client) GetModel() string {
	return c.model
}

// Close 關閉客戶端
func (c *Client) Close() error {
	c.client.GetClient().CloseIdleConnections()
	return nil
}

// Complete 發送一次 chat completion 請求
func (c *Client) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if req.Credential == "" {
		return nil, common.ErrMissingCredential
	}

	body := request{
		Model:     c.model,
		Messages:  buildMessages(req),
		MaxTokens: req.MaxTokens,
	}

	common.LogDebug("Sending request to completion provider",
		zap.String("model", c.model),
		zap.Int("messages", len(body.Messages)),
		zap.Bool("has_image", req.Image != nil),
		zap.Int("max_tokens", req.MaxTokens),
	)

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(req.Credential).
		SetBody(body).
		Post(completionsPath)
	if err != nil {
		common.LogError("Failed to send request to completion provider",
			zap.Error(err),
			zap.String("model", c.model),
		)
		return nil, common.Wrap(common.ErrTransport, fmt.Errorf("failed to send request: %w", err))
	}

	raw := resp.Body()
	if !resp.IsSuccess() {
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error != nil && env.Error.Message != "" {
			common.LogError("Completion provider reported an error",
				zap.Int("status_code", resp.StatusCode()),
				zap.String("message", env.Error.Message),
			)
			return nil, common.NewProviderError(env.Error.Message)
		}
		common.LogError("Completion provider returned error status",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("response", sanitizeResponse(raw)),
		)
		return nil, common.NewTransportError(resp.StatusCode(), sanitizeResponse(raw))
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		common.LogError("Failed to parse completion response",
			zap.Error(err),
			zap.String("response", sanitizeResponse(raw)),
		)
		return nil, common.NewParseError(fmt.Errorf("failed to parse response: %w", err))
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return nil, common.NewProviderError(parsed.Error.Message)
		}
		return nil, common.NewParseError(fmt.Errorf("no message content in response"))
	}

	content := *parsed.Choices[0].Message.Content
	common.LogDebug("Received completion",
		zap.String("model", parsed.Model),
		zap.Int("content_length", len(content)),
		zap.Int("total_tokens", parsed.Usage.TotalTokens),
	)

	return &provider.Response{
		Content: content,
		Model:   parsed.Model,
		Usage:   parsed.Usage,
	}, nil
}

// buildMessages 組成系統與使用者訊息，圖片以 data URI 附上
func buildMessages(req *provider.Request) []common.Message {
	messages := make([]common.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, common.Message{
			Role:    "system",
			Content: []common.Content{common.TextContent(req.System)},
		})
	}

	content := []common.Content{common.TextContent(req.Instruction)}
	if req.Image != nil {
		content = append(content, common.ImageContent(DataURI(req.Image)))
	}
	return append(messages, common.Message{Role: "user", Content: content})
}

// DataURI 將圖片編碼為 data:<mime>;base64,...
func DataURI(img *provider.Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(img.Data))
}

var dataURIPattern = regexp.MustCompile(`data:image/[A-Za-z0-9.+-]+;base64,[A-Za-z0-9+/=]+`)

// sanitizeResponse 移除圖片數據並截斷，僅供日誌與錯誤訊息使用
func sanitizeResponse(body []byte) string {
	s := dataURIPattern.ReplaceAllString(string(body), "[IMAGE_DATA_REMOVED]")
	s = strings.TrimSpace(s)
	if len(s) > maxLoggedBody {
		s = s[:maxLoggedBody] + "..."
	}
	return s
}
