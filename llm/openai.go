package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/hubenschmidt/go-shelf/core"
)

const (
	openAIBaseURL    = "https://api.openai.com/v1"
	openAIEmbedModel = "text-embedding-3-small"
	openAIChatModel  = "gpt-4-turbo"
)

type OpenAIClient struct {
	cfg    ClientConfig
	client *http.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return NewOpenAIClientWithConfig(ClientConfig{APIKey: apiKey})
}

func NewOpenAIClientWithConfig(cfg ClientConfig) *OpenAIClient {
	cfg.BaseURL = orDefault(cfg.BaseURL, openAIBaseURL)
	cfg.EmbedModel = orDefault(cfg.EmbedModel, openAIEmbedModel)
	cfg.ChatModel = orDefault(cfg.ChatModel, openAIChatModel)
	return &OpenAIClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.timeout()},
	}
}

func (c *OpenAIClient) Name() string { return ProviderOpenAI }

func (c *OpenAIClient) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.cfg.APIKey == "" {
		return nil, missingKey(ProviderOpenAI)
	}

	reqBody := map[string]any{
		"model": c.cfg.EmbedModel,
		"input": text,
	}

	var result openAIEmbeddingResponse
	if err := postJSON(ctx, c.client, ProviderOpenAI, c.cfg.BaseURL+"/embeddings", c.headers(), reqBody, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, errors.New("openai: empty embedding in response")
	}
	return result.Data[0].Embedding, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, p Prompt) (string, error) {
	if c.cfg.APIKey == "" {
		return "", missingKey(ProviderOpenAI)
	}

	reqBody := map[string]any{
		"model":    c.cfg.ChatModel,
		"messages": core.Messages(p.System, p.User),
	}
	if p.MaxTokens > 0 {
		reqBody["max_tokens"] = p.MaxTokens
	}

	var result openAIChatResponse
	if err := postJSON(ctx, c.client, ProviderOpenAI, c.cfg.BaseURL+"/chat/completions", c.headers(), reqBody, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}
