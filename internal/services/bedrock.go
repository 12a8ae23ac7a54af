package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockInvoker is the subset of the Bedrock runtime client used by Bedrock.
type BedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput,
		optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock provides an implementation of the Generator interface for Anthropic models hosted on AWS
// Bedrock. Credentials come from the default AWS credential chain.
type Bedrock struct {
	model     string
	maxTokens int

	client BedrockInvoker

	logger *slog.Logger
}

type bedrockClaudeRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
	System           string             `json:"system,omitempty"`
}

type bedrockClaudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewBedrock loads the default AWS configuration for region and creates a Bedrock instance.
func NewBedrock(ctx context.Context, region, model string, maxTokens int, logger *slog.Logger) (Bedrock, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return Bedrock{}, fmt.Errorf("error loading aws config: %w", err)
	}

	return NewBedrockWithClient(bedrockruntime.NewFromConfig(cfg), model, maxTokens, logger), nil
}

// NewBedrockWithClient creates a Bedrock instance on top of an existing runtime client.
func NewBedrockWithClient(client BedrockInvoker, model string, maxTokens int, logger *slog.Logger) Bedrock {
	return Bedrock{
		model:     model,
		maxTokens: maxTokens,
		client:    client,
		logger:    logger.With(slog.String("module", "bedrock")),
	}
}

// Generate invokes the configured model once and returns the concatenated text content.
func (b Bedrock) Generate(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(bedrockClaudeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        b.maxTokens,
		Messages:         []anthropicMessage{{Role: "user", Content: prompt}},
		System:           system,
	})
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("error invoking model: %w", err)
	}

	var res bedrockClaudeResponse
	if err := json.Unmarshal(out.Body, &res); err != nil {
		return "", fmt.Errorf("error unmarshaling response: %w", err)
	}

	b.logger.Debug("Received response",
		slog.String("stopReason", res.StopReason),
		slog.Int("inputTokens", res.Usage.InputTokens),
		slog.Int("outputTokens", res.Usage.OutputTokens))

	var text string
	for _, c := range res.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
