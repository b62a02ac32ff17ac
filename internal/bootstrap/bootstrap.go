// Package bootstrap turns configuration into the process-wide logger and the
// provider registry shared by the service and the CLI.
package bootstrap

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	aiapp "github.com/bryanwahyu/saqr/internal/application/ai"
	"github.com/bryanwahyu/saqr/internal/config"
	"github.com/bryanwahyu/saqr/internal/domain/ai"
	"github.com/bryanwahyu/saqr/internal/infra/ai/anthropic"
	"github.com/bryanwahyu/saqr/internal/infra/ai/gemini"
	"github.com/bryanwahyu/saqr/internal/infra/ai/openai"
)

// SetupLogger configures the global zerolog logger.
func SetupLogger(cfg *config.Config, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.Log.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", "saqr").Logger()
}

// Providers builds the adapters in providers.order. Providers without an API
// key are left out; the registry only ever sees configured ones.
func Providers(cfg *config.Config) []ai.Provider {
	out := make([]ai.Provider, 0, len(cfg.Providers.Order))
	for _, name := range cfg.Providers.Order {
		pc, ok := cfg.Provider(name)
		if !ok || pc.APIKey == "" {
			log.Debug().Str("provider", name).Msg("provider not configured")
			continue
		}
		scale := ai.ConfidenceScale(pc.ConfidenceScale)
		switch name {
		case config.Gemini:
			out = append(out, gemini.NewClient(gemini.Config{
				APIKey:    pc.APIKey,
				Endpoint:  pc.BaseURL,
				Models:    pc.Models,
				MaxTokens: pc.MaxTokens,
				Scale:     scale,
			}))
		case config.OpenAI:
			out = append(out, openai.NewClient(openai.Config{
				APIKey:    pc.APIKey,
				BaseURL:   pc.BaseURL,
				Models:    pc.Models,
				MaxTokens: pc.MaxTokens,
				Scale:     scale,
			}))
		case config.Anthropic:
			out = append(out, anthropic.NewClient(anthropic.Config{
				APIKey:    pc.APIKey,
				Endpoint:  pc.BaseURL,
				Models:    pc.Models,
				MaxTokens: pc.MaxTokens,
				Scale:     scale,
			}))
		}
	}
	return out
}

// Registry wraps Providers into the registry the orchestrator consumes.
func Registry(cfg *config.Config) *aiapp.Registry {
	return aiapp.NewRegistry(Providers(cfg)...)
}
