package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/taskmaster/taskmaster/internal/types"
)

// defaultAnthropicModel is used when no model is configured.
const defaultAnthropicModel = "claude-sonnet-4-5"

// AnthropicClient implements Client over the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClient creates an Anthropic-backed client.
func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if model == "" {
		model = defaultAnthropicModel
	}

	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}, nil
}

// Generate produces text from a single prompt.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	msgs := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}
	return c.generate(ctx, msgs, buildOptions(opts))
}

// GenerateMessages produces text from a multi-turn transcript.
func (c *AnthropicClient) GenerateMessages(ctx context.Context, msgs []Message, opts ...Option) (string, error) {
	params := make([]anthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == types.RoleAssistant {
			params = append(params, anthropic.NewAssistantMessage(block))
		} else {
			params = append(params, anthropic.NewUserMessage(block))
		}
	}
	return c.generate(ctx, params, buildOptions(opts))
}

func (c *AnthropicClient) generate(ctx context.Context, msgs []anthropic.MessageParam, o Options) (string, error) {
	maxTokens := int64(o.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	// The Messages API has no JSON response mode; prompts requesting
	// structured output rely on fence stripping at the call site.
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(o.Temperature),
		Messages:    msgs,
	})
	if err != nil {
		return "", classifyAnthropicError(err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("empty anthropic response: %w", ErrProvider)
	}

	return text, nil
}

// classifyAnthropicError maps SDK errors onto the package's error taxonomy.
func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("anthropic: %w", ErrRateLimited)
		default:
			return fmt.Errorf("anthropic: status %d: %w", apiErr.StatusCode, ErrProvider)
		}
	}
	return fmt.Errorf("anthropic call failed: %w", err)
}
