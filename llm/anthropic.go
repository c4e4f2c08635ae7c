package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const (
	anthropicBaseURL   = "https://api.anthropic.com/v1"
	anthropicChatModel = "claude-3-5-haiku-latest"
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 1024
)

// AnthropicClient implements Generator only; the messages API has no
// embedding endpoint.
type AnthropicClient struct {
	cfg     ClientConfig
	client  *http.Client
	version string
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return NewAnthropicClientWithConfig(ClientConfig{APIKey: apiKey})
}

func NewAnthropicClientWithConfig(cfg ClientConfig) *AnthropicClient {
	cfg.BaseURL = orDefault(cfg.BaseURL, anthropicBaseURL)
	cfg.ChatModel = orDefault(cfg.ChatModel, anthropicChatModel)
	return &AnthropicClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.timeout()},
		version: anthropicVersion,
	}
}

func (c *AnthropicClient) Name() string { return ProviderAnthropic }

func (c *AnthropicClient) Generate(ctx context.Context, p Prompt) (string, error) {
	if c.cfg.APIKey == "" {
		return "", missingKey(ProviderAnthropic)
	}

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	reqBody := map[string]any{
		"model":      c.cfg.ChatModel,
		"max_tokens": maxTokens,
		"messages": []map[string]any{
			{"role": "user", "content": p.User},
		},
	}
	if p.System != "" {
		reqBody["system"] = p.System
	}

	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": c.version,
	}

	var result anthropicResponse
	if err := postJSON(ctx, c.client, ProviderAnthropic, c.cfg.BaseURL+"/messages", headers, reqBody, &result); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic: no text content in response")
	}
	return sb.String(), nil
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}
