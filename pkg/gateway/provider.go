package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/sipeed/polychat/pkg/config"
	"github.com/sipeed/polychat/pkg/logger"
)

// InferProvider guesses a provider from a model identifier. It is only used
// when gateway.provider is left empty.
func InferProvider(model string) string {
	m := strings.TrimSpace(strings.ToLower(model))
	if m == "" {
		return "gemini"
	}

	if prefix, _, ok := strings.Cut(m, "/"); ok {
		switch prefix {
		case "google", "models":
			return "gemini"
		case "openai":
			return "openai"
		case "anthropic":
			return "anthropic"
		}
	}

	switch {
	case strings.Contains(m, "claude"):
		return "anthropic"
	case strings.Contains(m, "gpt") || strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4") || strings.Contains(m, "dall-e"):
		return "openai"
	case strings.Contains(m, "gemini") || strings.Contains(m, "imagen") || strings.Contains(m, "veo"):
		return "gemini"
	default:
		return "gemini"
	}
}

// New builds the adapter selected by cfg.
func New(ctx context.Context, cfg *config.Config) (Gateway, error) {
	gc := cfg.Gateway
	name := strings.ToLower(strings.TrimSpace(gc.Provider))
	if name == "" {
		name = InferProvider(gc.ChatModel)
	}
	pc := cfg.ProviderFor(name)
	if pc.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %s", name)
	}

	logger.InfoCF("gateway", "Using provider",
		map[string]interface{}{"provider": name, "chat_model": gc.ChatModel})

	switch name {
	case "gemini":
		return NewGemini(ctx, pc, gc)
	case "openai":
		return NewOpenAI(pc, gc), nil
	case "anthropic":
		return NewAnthropic(pc, gc), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
