package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hubenschmidt/go-shelf/core"
)

const (
	ollamaEmbedModel = "nomic-embed-text"
	ollamaChatModel  = "llama3.2"
)

// OllamaClient talks to Ollama's native API. It needs no key; an empty base
// URL marks it unavailable.
type OllamaClient struct {
	cfg    ClientConfig
	client *http.Client
}

func NewOllamaClient(baseURL string) *OllamaClient {
	return NewOllamaClientWithConfig(ClientConfig{BaseURL: baseURL})
}

func NewOllamaClientWithConfig(cfg ClientConfig) *OllamaClient {
	host := strings.TrimSuffix(cfg.BaseURL, "/")
	cfg.BaseURL = strings.TrimSuffix(host, "/v1")
	cfg.EmbedModel = orDefault(cfg.EmbedModel, ollamaEmbedModel)
	cfg.ChatModel = orDefault(cfg.ChatModel, ollamaChatModel)
	return &OllamaClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.timeout()},
	}
}

func (c *OllamaClient) Name() string { return ProviderOllama }

func (c *OllamaClient) unavailable() error {
	if c.cfg.BaseURL == "" {
		return fmt.Errorf("ollama: base url missing: %w", core.ErrProviderUnavailable)
	}
	return nil
}

func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := c.unavailable(); err != nil {
		return nil, err
	}

	reqBody := map[string]any{
		"model": c.cfg.EmbedModel,
		"input": text,
	}

	var result struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := postJSON(ctx, c.client, ProviderOllama, c.cfg.BaseURL+"/api/embed", nil, reqBody, &result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, errors.New("ollama: no embeddings in response")
	}
	return result.Embeddings[0], nil
}

func (c *OllamaClient) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := c.unavailable(); err != nil {
		return "", err
	}

	reqBody := map[string]any{
		"model":  c.cfg.ChatModel,
		"prompt": p.User,
		"stream": false,
	}
	if p.System != "" {
		reqBody["system"] = p.System
	}
	if p.MaxTokens > 0 {
		reqBody["options"] = map[string]any{"num_predict": p.MaxTokens}
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := postJSON(ctx, c.client, ProviderOllama, c.cfg.BaseURL+"/api/generate", nil, reqBody, &result); err != nil {
		return "", err
	}
	return result.Response, nil
}

// Models lists the models installed on the Ollama host.
func (c *OllamaClient) Models(ctx context.Context) ([]string, error) {
	if err := c.unavailable(); err != nil {
		return nil, err
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := getJSON(ctx, c.client, ProviderOllama, c.cfg.BaseURL+"/api/tags", &tags); err != nil {
		return nil, err
	}

	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// HasModel reports whether model (with or without a ":tag" suffix) is installed.
func HasModel(installed []string, model string) bool {
	base := strings.SplitN(model, ":", 2)[0]
	for _, name := range installed {
		if name == model || strings.SplitN(name, ":", 2)[0] == base {
			return true
		}
	}
	return false
}

// MissingModels returns the configured embed and chat models that are not
// installed on the host.
func (c *OllamaClient) MissingModels(ctx context.Context) ([]string, error) {
	installed, err := c.Models(ctx)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, m := range []string{c.cfg.EmbedModel, c.cfg.ChatModel} {
		if !HasModel(installed, m) {
			missing = append(missing, m)
		}
	}
	return missing, nil
}
