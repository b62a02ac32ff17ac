package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	var r Recorder

	before := testutil.ToFloat64(ProviderAttempts.WithLabelValues("gemini", "rate_limited"))
	r.ProviderAttempt("gemini", "rate_limited", 120*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(ProviderAttempts.WithLabelValues("gemini", "rate_limited")))

	before = testutil.ToFloat64(ProviderFallbacks.WithLabelValues("gemini", "openai"))
	r.ProviderFallback("gemini", "openai")
	assert.Equal(t, before+1, testutil.ToFloat64(ProviderFallbacks.WithLabelValues("gemini", "openai")))

	before = testutil.ToFloat64(Analyses.WithLabelValues("multi-spec", "none", "true"))
	r.Analysis("multi-spec", "", true)
	assert.Equal(t, before+1, testutil.ToFloat64(Analyses.WithLabelValues("multi-spec", "none", "true")))

	before = testutil.ToFloat64(EvidenceUploads.WithLabelValues("failure"))
	r.EvidenceUpload(errors.New("bucket gone"))
	assert.Equal(t, before+1, testutil.ToFloat64(EvidenceUploads.WithLabelValues("failure")))
}
