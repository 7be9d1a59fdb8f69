package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"agentd/internal/chat"

	openai "github.com/sashabaranov/go-openai"
)

// Config SDK provider 配置
// Config is the SDK provider configuration
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	TimeoutMS  int
	MaxRetries int
}

// Client 使用 go-openai SDK 的聊天补全客户端
// Client is a chat-completion client built on the go-openai SDK
type Client struct {
	client *openai.Client
	model  string
	cfg    Config
}

// New 创建基于 SDK 的客户端
// New creates an SDK-based client
func New(cfg Config) *Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	config.HTTPClient = httpClient

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		cfg:    cfg,
	}
}

// Model 返回当前使用的模型
// Model returns the active model identifier
func (c *Client) Model() string {
	return c.model
}

// Chat 发送一次非流式聊天请求并返回助手回复文本
// Chat sends one non-streaming chat request and returns the assistant reply
// text. Transient failures (429, 5xx, transport) are retried with capped
// exponential backoff.
func (c *Client) Chat(ctx context.Context, messages []chat.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(150*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", err
			}
			if !isRetryable(err) {
				return "", fmt.Errorf("chat completion: %w", err)
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("chat completion returned no choices")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("chat completion after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

// isRetryable 判断错误是否值得重试（限流、服务端错误、传输层失败）
// isRetryable reports whether an error is worth retrying (rate limits,
// server errors, transport failures)
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	// 非 API 错误视为传输层失败 / treat non-API errors as transport failures
	return true
}
