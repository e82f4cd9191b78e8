package llm

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/uni-helper/internal/model"
)

// New selects the configured backend. Hosted providers are wrapped in a
// circuit breaker.
func New(cfg model.AIConfig, logger zerolog.Logger) (Backend, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	switch cfg.Provider {
	case model.ProviderClaude:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude provider requires an API key")
		}
		return NewBreaker(NewAnthropic(cfg.APIKey, cfg.Model, client), logger), nil
	case model.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewBreaker(NewOpenAI(cfg.APIKey, cfg.Model, client), logger), nil
	case model.ProviderLocal:
		return NewLocal(cfg.Local.Endpoint, cfg.Local.Threads, client), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
