package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrConfigurationMissing is returned when no provider has credentials configured.
var ErrConfigurationMissing = errors.New("no ai provider configured")

// ErrorKind classifies provider failures for the fallback decision.
type ErrorKind string

const (
	KindAuthMissing ErrorKind = "AUTH_MISSING"
	KindRateLimited ErrorKind = "RATE_LIMITED"
	KindTransport   ErrorKind = "TRANSPORT"
	KindUnexpected  ErrorKind = "UNEXPECTED"
)

// ReasonTimeout is the TRANSPORT sub-reason for an exceeded deadline.
const ReasonTimeout = "timeout"

// ProviderError is the only error shape adapters surface to the orchestrator.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Reason   string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" status=%d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrQuotaExceeded) match rate-limit failures.
func (e *ProviderError) Is(target error) bool {
	return target == ErrQuotaExceeded && e.Kind == KindRateLimited
}

// Timeout reports whether the error is a TRANSPORT timeout.
func (e *ProviderError) Timeout() bool {
	return e.Kind == KindTransport && e.Reason == ReasonTimeout
}

// KindOf extracts the ErrorKind of err, UNEXPECTED when err is not a ProviderError.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnexpected
}

// IsRateLimited reports whether err should trigger fallback to the next provider.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// AuthMissing builds the error adapters return when no API key is set.
func AuthMissing(provider string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindAuthMissing, Reason: "api key not configured"}
}

// FromStatus maps a non-2xx provider HTTP response to a ProviderError.
func FromStatus(provider string, status int, body []byte) *ProviderError {
	pe := &ProviderError{Provider: provider, Status: status}
	if len(body) > 0 {
		pe.Err = errors.New(string(body))
	}
	switch {
	case status == http.StatusTooManyRequests:
		pe.Kind = KindRateLimited
	case status >= 400 && status < 500 && quotaBody(body):
		pe.Kind = KindRateLimited
		pe.Reason = "quota"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		pe.Kind = KindAuthMissing
		pe.Reason = "credentials rejected"
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		pe.Kind = KindTransport
		pe.Reason = ReasonTimeout
	default:
		pe.Kind = KindUnexpected
	}
	return pe
}

// quotaMarkers are the quota error codes Gemini, OpenAI and Anthropic put in
// non-429 error bodies.
var quotaMarkers = []string{"resource_exhausted", "insufficient_quota", "quota exceeded", "rate_limit_error"}

func quotaBody(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	lower := strings.ToLower(string(body))
	for _, m := range quotaMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// FromTransport maps a failed round trip to a ProviderError. ctx is the request
// context so an exceeded deadline is reported as a timeout even when the
// client wraps it.
func FromTransport(ctx context.Context, provider string, err error) *ProviderError {
	pe := &ProviderError{Provider: provider, Kind: KindTransport, Err: err}
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		pe.Reason = ReasonTimeout
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		pe.Reason = "canceled"
	case errors.As(err, &ne) && ne.Timeout():
		pe.Reason = ReasonTimeout
	default:
		pe.Reason = "network"
	}
	return pe
}

// Outcome is the short label used in logs and metrics for an attempt result.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return "unexpected"
	}
	if pe.Timeout() {
		return "timeout"
	}
	switch pe.Kind {
	case KindRateLimited:
		return "rate_limited"
	case KindAuthMissing:
		return "auth_missing"
	case KindTransport:
		return "transport"
	default:
		return "unexpected"
	}
}
