package ai

import (
	"context"
	"fmt"
	"os"

	"chat-companion/backend/pkg/config"
	"chat-companion/backend/pkg/logger"
	"chat-companion/backend/pkg/secrets"
)

// Backend is the single capability the session engine needs from a hosted
// text-generation provider. An empty reply with a nil error means the
// provider produced no text.
type Backend interface {
	// Name identifies the provider in logs and metrics
	Name() string

	// Generate produces reply text for the prompt under the given persona.
	// Failures are always a *Fault; raw transport errors never escape.
	Generate(ctx context.Context, prompt, persona string, maxTokens int) (string, error)
}

// New selects and initializes the configured provider. A missing credential
// or a failed initialization handshake is a fatal startup condition.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (Backend, error) {
	switch cfg.AI.Provider {
	case "deepseek":
		return NewDeepSeekClient(apiKey(ctx, "DEEPSEEK_API_KEY"), log)
	case "openai":
		return NewOpenAIClient(apiKey(ctx, "OPENAI_API_KEY"), log)
	case "gemini":
		return NewGeminiClient(ctx, apiKey(ctx, "GEMINI_API_KEY"), cfg.AI.InitTimeout, log)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AI.Provider)
	}
}

func apiKey(ctx context.Context, name string) string {
	return secrets.GetSecretWithDefault(ctx, name, os.Getenv(name))
}
