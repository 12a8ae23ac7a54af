package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MegaGrindStone/alx/internal/prompts"
)

// Generator represents a text-generation provider. It accepts a system instruction and a single user
// prompt, and returns the provider's complete response text.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Dispatcher forwards prompts to a Generator together with a fixed instructional template. It holds no
// state across invocations and performs no validation, retry or caching.
type Dispatcher struct {
	gen      Generator
	template prompts.Template
	timeout  time.Duration

	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher bound to gen and tmpl. A positive timeout bounds every dispatch;
// zero leaves the bound to the underlying transport.
func NewDispatcher(gen Generator, tmpl prompts.Template, timeout time.Duration, logger *slog.Logger) Dispatcher {
	return Dispatcher{
		gen:      gen,
		template: tmpl,
		timeout:  timeout,
		logger:   logger.With(slog.String("module", "dispatcher")),
	}
}

// Template returns the instructional template sent with every prompt.
func (d Dispatcher) Template() prompts.Template {
	return d.template
}

// Dispatch submits the template and prompt to the provider and returns the response text unmodified.
// Provider failures are returned wrapped and left to the caller to log.
func (d Dispatcher) Dispatch(ctx context.Context, prompt string) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := d.gen.Generate(ctx, d.template.Text, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to dispatch prompt: %w", err)
	}

	d.logger.Debug("Dispatched prompt",
		slog.String("template", d.template.Name),
		slog.Int("promptLen", len(prompt)),
		slog.Int("responseLen", len(text)),
		slog.Duration("elapsed", time.Since(start)))

	return text, nil
}
