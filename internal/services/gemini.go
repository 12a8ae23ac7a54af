package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Gemini provides an implementation of the Generator interface for Google's Gemini models through the
// generativelanguage REST API.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string

	client *http.Client

	logger *slog.Logger
}

type geminiRequest struct {
	SystemInstruction *geminiContent `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

const (
	geminiAPIEndpoint = "https://generativelanguage.googleapis.com/v1beta"
)

// NewGemini creates a new Gemini instance with the specified API key and model. An empty baseURL uses
// the public endpoint.
func NewGemini(apiKey, model, baseURL string, logger *slog.Logger) Gemini {
	if baseURL == "" {
		baseURL = geminiAPIEndpoint
	}
	return Gemini{
		apiKey:  apiKey,
		model:   strings.TrimPrefix(model, "models/"),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		logger:  logger.With(slog.String("module", "gemini")),
	}
}

// Generate sends the system instruction and prompt to the generateContent endpoint and returns the
// concatenated text parts of the first candidate.
func (g Gemini) Generate(ctx context.Context, system, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: prompt}},
			},
		},
	}
	if system != "" {
		reqBody.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: system}},
		}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = string(body)
		}
		return "", &APIError{Provider: "gemini", StatusCode: resp.StatusCode, Message: msg}
	}

	g.logger.Debug("Received response",
		slog.String("finishReason", gjson.GetBytes(body, "candidates.0.finishReason").String()),
		slog.Int64("totalTokens", gjson.GetBytes(body, "usageMetadata.totalTokenCount").Int()))

	var sb strings.Builder
	for _, part := range gjson.GetBytes(body, "candidates.0.content.parts.#.text").Array() {
		sb.WriteString(part.String())
	}
	if sb.Len() == 0 {
		if reason := gjson.GetBytes(body, "promptFeedback.blockReason").String(); reason != "" {
			return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, reason)
		}
		return "", ErrEmptyResponse
	}

	return sb.String(), nil
}
