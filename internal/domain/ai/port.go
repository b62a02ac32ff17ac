package ai

import (
	"context"
	"strings"
)

// Media is one piece of evidence sent to a provider.
type Media struct {
	Data     []byte
	MimeType string
}

// IsVideo reports whether the payload is a video clip rather than a still frame.
func (m Media) IsVideo() bool {
	return strings.HasPrefix(m.MimeType, "video/")
}

// ConfidenceScale is the scale a provider reports confidence on.
type ConfidenceScale string

const (
	ScalePercent ConfidenceScale = "percent"
	ScaleUnit    ConfidenceScale = "unit"
)

// Provider is a multimodal AI service able to judge an image against a prompt.
// Analyze returns the model's raw text; failures are *ProviderError.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, media Media, prompt string) (string, error)
	// Configured reports whether credentials are present.
	Configured() bool
	SupportsVideo() bool
	ConfidenceScale() ConfidenceScale
}
