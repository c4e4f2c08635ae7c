package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const (
	geminiBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	geminiEmbedModel = "models/embedding-001"
	geminiChatModel  = "gemini-2.5-flash"
)

type GeminiClient struct {
	cfg    ClientConfig
	client *http.Client
}

func NewGeminiClient(apiKey string) *GeminiClient {
	return NewGeminiClientWithConfig(ClientConfig{APIKey: apiKey})
}

func NewGeminiClientWithConfig(cfg ClientConfig) *GeminiClient {
	cfg.BaseURL = orDefault(cfg.BaseURL, geminiBaseURL)
	cfg.EmbedModel = orDefault(cfg.EmbedModel, geminiEmbedModel)
	cfg.ChatModel = orDefault(cfg.ChatModel, geminiChatModel)
	return &GeminiClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.timeout()},
	}
}

func (c *GeminiClient) Name() string { return ProviderGemini }

func (c *GeminiClient) headers() map[string]string {
	return map[string]string{"x-goog-api-key": c.cfg.APIKey}
}

// modelPath accepts both "embedding-001" and "models/embedding-001".
func modelPath(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.cfg.APIKey == "" {
		return nil, missingKey(ProviderGemini)
	}

	model := modelPath(c.cfg.EmbedModel)
	reqBody := map[string]any{
		"model":    model,
		"content":  geminiContent{Parts: []geminiPart{{Text: text}}},
		"taskType": "RETRIEVAL_DOCUMENT",
	}

	var result struct {
		Embedding struct {
			Values []float64 `json:"values"`
		} `json:"embedding"`
	}
	url := c.cfg.BaseURL + "/" + model + ":embedContent"
	if err := postJSON(ctx, c.client, ProviderGemini, url, c.headers(), reqBody, &result); err != nil {
		return nil, err
	}
	if len(result.Embedding.Values) == 0 {
		return nil, errors.New("gemini: empty embedding in response")
	}
	return result.Embedding.Values, nil
}

func (c *GeminiClient) Generate(ctx context.Context, p Prompt) (string, error) {
	if c.cfg.APIKey == "" {
		return "", missingKey(ProviderGemini)
	}

	reqBody := map[string]any{
		"contents": []geminiContent{{Role: "user", Parts: []geminiPart{{Text: p.User}}}},
	}
	if p.System != "" {
		reqBody["systemInstruction"] = geminiContent{Parts: []geminiPart{{Text: p.System}}}
	}
	if p.MaxTokens > 0 {
		reqBody["generationConfig"] = map[string]any{"maxOutputTokens": p.MaxTokens}
	}

	var result struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
	}
	url := c.cfg.BaseURL + "/" + modelPath(c.cfg.ChatModel) + ":generateContent"
	if err := postJSON(ctx, c.client, ProviderGemini, url, c.headers(), reqBody, &result); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 {
		return "", errors.New("gemini: no candidates in response")
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}
