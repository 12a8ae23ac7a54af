package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// OpenRouter provides an implementation of the Generator interface for OpenRouter's OpenAI-compatible
// chat completions API.
type OpenRouter struct {
	apiKey  string
	model   string
	baseURL string

	client *http.Client

	logger *slog.Logger
}

type openRouterChatRequest struct {
	Model    string              `json:"model"`
	Messages []openRouterMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterResponse struct {
	Choices []openRouterChoice `json:"choices"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openRouterChoice struct {
	Message      openRouterMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

const (
	openRouterAPIEndpoint = "https://openrouter.ai/api/v1"
)

// NewOpenRouter creates a new OpenRouter instance with the specified API key and model name. An empty
// baseURL uses the public endpoint.
func NewOpenRouter(apiKey, model, baseURL string, logger *slog.Logger) OpenRouter {
	if baseURL == "" {
		baseURL = openRouterAPIEndpoint
	}
	return OpenRouter{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		logger:  logger.With(slog.String("module", "openrouter")),
	}
}

// Generate sends a single non-streaming completion request and returns the first choice's content.
func (o OpenRouter) Generate(ctx context.Context, system, prompt string) (string, error) {
	msgs := []openRouterMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}
	if system == "" {
		msgs = msgs[1:]
	}

	jsonBody, err := json.Marshal(openRouterChatRequest{
		Model:    o.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	o.logger.Debug("Request Body", slog.Int("bytes", len(jsonBody)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/MegaGrindStone/alx/")
	req.Header.Set("X-Title", "Alx")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &APIError{Provider: "openrouter", StatusCode: resp.StatusCode, Message: string(body)}
	}

	var res openRouterResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}
	if res.Error != nil {
		return "", &APIError{Provider: "openrouter", StatusCode: res.Error.Code, Message: res.Error.Message}
	}
	if len(res.Choices) == 0 {
		return "", errors.New("no choices found")
	}
	if res.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return res.Choices[0].Message.Content, nil
}
