package ai

import (
	domain "github.com/bryanwahyu/saqr/internal/domain/ai"
)

// Registry holds the providers in priority order.
type Registry struct {
	providers []domain.Provider
}

func NewRegistry(providers ...domain.Provider) *Registry {
	return &Registry{providers: providers}
}

// Available returns the configured providers in priority order. When video is
// true only providers accepting video input are returned.
func (r *Registry) Available(video bool) []domain.Provider {
	out := make([]domain.Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if !p.Configured() {
			continue
		}
		if video && !p.SupportsVideo() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Names lists every registered provider, configured or not.
func (r *Registry) Names() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}
