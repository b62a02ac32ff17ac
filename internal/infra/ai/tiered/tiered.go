// Package tiered runs a provider's model list in order, stepping down to the
// next model only when the current one is rate limited.
package tiered

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/saqr/internal/domain/ai"
)

// MaxErrorBodySize caps how much of a provider error body is kept.
const MaxErrorBodySize = 4 << 10

// Call performs one request against model.
type Call func(ctx context.Context, model string) (string, error)

// Run calls models in order. Any failure other than RATE_LIMITED is returned
// immediately; when every model is rate limited the last error is returned.
func Run(ctx context.Context, provider string, models []string, call Call) (string, error) {
	if len(models) == 0 {
		return "", &ai.ProviderError{Provider: provider, Kind: ai.KindUnexpected, Reason: "no models configured"}
	}

	var lastErr error
	for i, model := range models {
		start := time.Now()
		out, err := call(ctx, model)
		log.Info().
			Str("provider", provider).
			Str("model", model).
			Int("tier", i).
			Str("outcome", ai.Outcome(err)).
			Dur("latency", time.Since(start)).
			Msg("model attempt")

		if err == nil {
			return out, nil
		}
		lastErr = err
		if !ai.IsRateLimited(err) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ai.FromTransport(ctx, provider, ctx.Err())
		}
	}
	return "", lastErr
}

// ReadLimitedBody reads at most limit bytes from r.
func ReadLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil && !errors.Is(err, io.EOF) {
		return b, err
	}
	return b, nil
}
