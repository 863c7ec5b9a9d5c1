package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/taskmaster/taskmaster/internal/types"
)

// defaultGeminiModel is used when no model is configured.
const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient implements Client over the Google Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Generate produces text from a single prompt.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	return c.generate(ctx, contents, buildOptions(opts))
}

// GenerateMessages produces text from a multi-turn transcript.
// Assistant turns map to Gemini's "model" role.
func (c *GeminiClient) GenerateMessages(ctx context.Context, msgs []Message, opts ...Option) (string, error) {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		role := genai.Role(genai.RoleUser)
		if msg.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return c.generate(ctx, contents, buildOptions(opts))
}

func (c *GeminiClient) generate(ctx context.Context, contents []*genai.Content, o Options) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(o.Temperature)),
	}
	if o.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(o.MaxOutputTokens)
	}
	if o.JSONResponse {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty gemini response: %w", ErrProvider)
	}

	return text, nil
}

// classifyGeminiError maps SDK errors onto the package's error taxonomy.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("gemini: %s: %w", apiErr.Message, ErrRateLimited)
		default:
			return fmt.Errorf("gemini: %s: %w", apiErr.Message, ErrProvider)
		}
	}
	return fmt.Errorf("gemini call failed: %w", err)
}
