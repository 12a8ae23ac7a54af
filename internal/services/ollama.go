package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// Ollama provides an implementation of the Generator interface for interacting with Ollama's language
// models. It manages the connection to an Ollama server instance.
type Ollama struct {
	model string

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. An empty host
// falls back to the OLLAMA_HOST environment variable and then to Ollama's default address.
func NewOllama(host, model string, logger *slog.Logger) (Ollama, error) {
	var client *api.Client
	if host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return Ollama{}, fmt.Errorf("error creating ollama client: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(host)
		if err != nil {
			return Ollama{}, fmt.Errorf("error parsing ollama host: %w", err)
		}
		client = api.NewClient(u, &http.Client{})
	}

	return Ollama{
		model:  model,
		client: client,
		logger: logger.With(slog.String("module", "ollama")),
	}, nil
}

// Generate sends a single non-streaming chat request to the Ollama server and returns the response
// message content.
func (o Ollama) Generate(ctx context.Context, system, prompt string) (string, error) {
	var msgs []api.Message
	if system != "" {
		msgs = append(msgs, api.Message{
			Role:    "system",
			Content: system,
		})
	}
	msgs = append(msgs, api.Message{
		Role:    "user",
		Content: prompt,
	})

	f := false
	req := api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &f,
	}

	var text string
	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		text += res.Message.Content
		return nil
	}); err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	o.logger.Debug("Received response", slog.Int("textLen", len(text)))

	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
