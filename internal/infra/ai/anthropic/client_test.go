package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/saqr/internal/domain/ai"
)

var png = ai.Media{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png"}

func TestAnalyze_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-sonnet-4-5", req.Model)
		require.Len(t, req.Messages[0].Content, 2)
		assert.Equal(t, "image/png", req.Messages[0].Content[0].Source.MediaType)
		assert.Equal(t, "p", req.Messages[0].Content[1].Text)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"results\":[]}"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	out, err := NewClient(Config{APIKey: "k", Endpoint: srv.URL}).Analyze(context.Background(), png, "p")
	require.NoError(t, err)
	assert.Equal(t, `{"results":[]}`, out)
}

func TestAnalyze_RateLimitedEverywhere(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIKey: "k", Endpoint: srv.URL}).Analyze(context.Background(), png, "p")
	assert.True(t, ai.IsRateLimited(err))
	assert.Equal(t, int32(len(DefaultModels)), calls.Load())
}

func TestAnalyze_RejectsVideo(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})
	assert.False(t, c.SupportsVideo())

	_, err := c.Analyze(context.Background(), ai.Media{Data: []byte{1}, MimeType: "video/mp4"}, "p")
	assert.Equal(t, ai.KindUnexpected, ai.KindOf(err))
}

func TestAnalyze_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIKey: "k", Endpoint: srv.URL}).Analyze(context.Background(), png, "p")
	assert.Equal(t, ai.KindUnexpected, ai.KindOf(err))
}

func TestAnalyze_NoKey(t *testing.T) {
	_, err := NewClient(Config{}).Analyze(context.Background(), png, "p")
	assert.Equal(t, ai.KindAuthMissing, ai.KindOf(err))
}
