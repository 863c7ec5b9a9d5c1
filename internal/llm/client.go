// Package llm wraps hosted large-language-model providers behind a small
// provider-neutral client interface.
//
// Callers must treat every call as fallible: rate limits, provider outages,
// and malformed output are normal operating conditions, and each consumer
// (parser, intelligence engine, agent) carries its own deterministic
// fallback.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Error conditions callers are expected to distinguish.
var (
	// ErrRateLimited indicates the provider rejected the call for quota
	// or rate-limit reasons. Callers should not retry within a request.
	ErrRateLimited = errors.New("rate limited by model provider")

	// ErrProvider indicates a provider-side failure (5xx, malformed
	// response envelope, transport error).
	ErrProvider = errors.New("model provider error")
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Options configure a single generation call.
type Options struct {
	Temperature     float64
	MaxOutputTokens int
	JSONResponse    bool // ask the provider for a JSON-typed response
}

// Option mutates generation options.
type Option func(*Options)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = t }
}

// WithMaxOutputTokens bounds the response size.
func WithMaxOutputTokens(n int) Option {
	return func(o *Options) { o.MaxOutputTokens = n }
}

// WithJSONResponse requests structured JSON output where the provider
// supports it.
func WithJSONResponse() Option {
	return func(o *Options) { o.JSONResponse = true }
}

func buildOptions(opts []Option) Options {
	// Defaults mirror the service-level AI configuration.
	o := Options{Temperature: 0.7, MaxOutputTokens: 1000}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Client is the minimal surface the AI layers need from a model provider.
type Client interface {
	// Generate produces text from a single prompt.
	Generate(ctx context.Context, prompt string, opts ...Option) (string, error)

	// GenerateMessages produces text from a multi-turn transcript.
	GenerateMessages(ctx context.Context, msgs []Message, opts ...Option) (string, error)
}

// Disabled returns a client that fails every call with ErrProvider.
// It keeps the AI surfaces running on their deterministic fallbacks
// when no API key is configured.
func Disabled() Client { return disabledClient{} }

type disabledClient struct{}

func (disabledClient) Generate(context.Context, string, ...Option) (string, error) {
	return "", fmt.Errorf("no model provider configured: %w", ErrProvider)
}

func (disabledClient) GenerateMessages(context.Context, []Message, ...Option) (string, error) {
	return "", fmt.Errorf("no model provider configured: %w", ErrProvider)
}

// Config selects and configures a provider.
type Config struct {
	Provider string // "gemini" or "anthropic"
	APIKey   string
	Model    string
}

// New creates a client for the configured provider.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "gemini", "":
		return NewGeminiClient(cfg.APIKey, cfg.Model)
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.Model)
	}
	return nil, fmt.Errorf("unknown model provider %q (want gemini or anthropic)", cfg.Provider)
}
