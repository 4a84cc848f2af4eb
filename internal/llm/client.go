package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/httpx"
	"github.com/ggonzalez94/bridgectl/internal/registry"
)

// Completer sends one system instruction and one user message and returns
// the model's free text answer.
type Completer interface {
	Complete(ctx context.Context, systemInstruction, userMessage string) (string, error)
}

type Config struct {
	Endpoint string
	Model    string
	APIKey   string
}

// Client speaks the OpenAI-compatible chat completions protocol.
type Client struct {
	http     *httpx.Client
	endpoint string
	model    string
	apiKey   string
}

func New(httpClient *httpx.Client, cfg Config) *Client {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = registry.DefaultLLMEndpoint
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = registry.DefaultLLMModel
	}
	return &Client{
		http:     httpClient,
		endpoint: endpoint,
		model:    model,
		apiKey:   strings.TrimSpace(cfg.APIKey),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Complete(ctx context.Context, systemInstruction, userMessage string) (string, error) {
	if c.apiKey == "" {
		return "", clierr.New(clierr.CodeAuth, "language model api key is not configured")
	}
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: userMessage},
		},
		MaxTokens: 256,
	})
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "encode completion request", err)
	}
	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.endpoint, body, headers, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", clierr.New(clierr.CodeUnavailable, "language model returned no content")
	}
	return resp.Choices[0].Message.Content, nil
}
