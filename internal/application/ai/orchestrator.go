package ai

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"
	"github.com/rs/zerolog/log"

	domain "github.com/bryanwahyu/saqr/internal/domain/ai"
)

// maxChain is how many providers one analysis may touch.
const maxChain = 2

// Recorder receives attempt metrics. A nil Recorder is allowed.
type Recorder interface {
	ProviderAttempt(provider, outcome string, latency time.Duration)
	ProviderFallback(from, to string)
}

// Answer is a provider's raw reply and where it came from.
type Answer struct {
	Text     string
	Provider string
	Scale    domain.ConfidenceScale
}

// Orchestrator calls the primary provider and falls back to the secondary
// only when the primary is rate limited.
type Orchestrator struct {
	Registry *Registry
	Recorder Recorder
}

func NewOrchestrator(reg *Registry, rec Recorder) *Orchestrator {
	return &Orchestrator{Registry: reg, Recorder: rec}
}

// AnalyzeWithFallback runs the provider chain under budget. It returns
// domain.ErrConfigurationMissing when no provider can take the media, and a
// TRANSPORT timeout *ProviderError once budget is spent, even if a provider
// ignores its context.
func (o *Orchestrator) AnalyzeWithFallback(ctx context.Context, media domain.Media, prompt string, budget time.Duration) (Answer, error) {
	providers := o.Registry.Available(media.IsVideo())
	if len(providers) == 0 {
		return Answer{}, domain.ErrConfigurationMissing
	}
	if len(providers) > maxChain {
		providers = providers[:maxChain]
	}

	var current atomic.Value
	current.Store(providers[0].Name())

	// fortify reports the deadline even when the chain finished just before it
	var won atomic.Pointer[Answer]
	t := timeout.New[Answer](timeout.Config{DefaultTimeout: budget})
	ans, err := t.Execute(ctx, budget, func(ctx context.Context) (Answer, error) {
		ans, err := o.chain(ctx, providers, media, prompt, &current)
		if err == nil {
			won.Store(&ans)
		}
		return ans, err
	})
	if err == nil {
		return ans, nil
	}
	if a := won.Load(); a != nil {
		return *a, nil
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return Answer{}, err
	}
	// the chain only fails with *ProviderError, anything else is the deadline
	name := current.Load().(string)
	if ctx.Err() != nil {
		return Answer{}, domain.FromTransport(ctx, name, ctx.Err())
	}
	return Answer{}, &domain.ProviderError{Provider: name, Kind: domain.KindTransport, Reason: domain.ReasonTimeout, Err: err}
}

func (o *Orchestrator) chain(ctx context.Context, providers []domain.Provider, media domain.Media, prompt string, current *atomic.Value) (Answer, error) {
	m, err := newFallbackMachine()
	if err != nil {
		return Answer{}, &domain.ProviderError{Provider: providers[0].Name(), Kind: domain.KindUnexpected, Err: err}
	}
	m.send(eventCall)

	for {
		var p domain.Provider
		switch m.current() {
		case stateCallingPrimary:
			p = providers[0]
		case stateCallingSecondary:
			p = providers[1]
		default:
			return Answer{}, &domain.ProviderError{Provider: providers[0].Name(), Kind: domain.KindUnexpected, Reason: "chain in state " + m.current()}
		}
		current.Store(p.Name())

		start := time.Now()
		text, err := attempt(ctx, p, media, prompt)
		o.observe(p.Name(), m.current(), err, time.Since(start))

		if err == nil {
			m.send(eventSucceeded)
			return Answer{Text: text, Provider: p.Name(), Scale: p.ConfidenceScale()}, nil
		}
		if !domain.IsRateLimited(err) || len(providers) == 1 {
			m.send(eventFailed)
			return Answer{}, err
		}
		if m.send(eventRateLimited) == stateFailed {
			return Answer{}, err
		}
		next := providers[1].Name()
		log.Warn().Str("from", p.Name()).Str("to", next).Msg("provider rate limited, falling back")
		if o.Recorder != nil {
			o.Recorder.ProviderFallback(p.Name(), next)
		}
	}
}

// attempt returns as soon as ctx is done, even if the provider does not.
func attempt(ctx context.Context, p domain.Provider, media domain.Media, prompt string) (string, error) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := p.Analyze(ctx, media, prompt)
		done <- result{text, err}
	}()
	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", domain.FromTransport(ctx, p.Name(), ctx.Err())
	}
}

func (o *Orchestrator) observe(provider, stage string, err error, latency time.Duration) {
	outcome := domain.Outcome(err)
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("provider", provider).
		Str("stage", stage).
		Str("outcome", outcome).
		Dur("latency", latency).
		Msg("provider attempt")
	if o.Recorder != nil {
		o.Recorder.ProviderAttempt(provider, outcome, latency)
	}
}
