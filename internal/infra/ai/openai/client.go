package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/saqr/internal/domain/ai"
	"github.com/bryanwahyu/saqr/internal/infra/ai/tiered"
)

const (
	Name          = "openai"
	defaultTokens = 4096
)

// DefaultModels is the accuracy tier followed by the cost tier.
var DefaultModels = []string{"gpt-4o", "gpt-4o-mini"}

type Config struct {
	APIKey     string
	BaseURL    string
	Models     []string
	MaxTokens  int
	Scale      ai.ConfidenceScale
	HTTPClient *http.Client
}

type Client struct {
	*openai.Client
	cfg Config
}

func NewClient(cfg Config) *Client {
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultTokens
	}
	if cfg.Scale == "" {
		cfg.Scale = ai.ScalePercent
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return &Client{Client: openai.NewClientWithConfig(oc), cfg: cfg}
}

func (c *Client) Name() string                        { return Name }
func (c *Client) Configured() bool                    { return c.cfg.APIKey != "" }
func (c *Client) SupportsVideo() bool                 { return false }
func (c *Client) ConfidenceScale() ai.ConfidenceScale { return c.cfg.Scale }

func (c *Client) Analyze(ctx context.Context, media ai.Media, prompt string) (string, error) {
	if !c.Configured() {
		return "", ai.AuthMissing(Name)
	}
	if media.IsVideo() {
		return "", &ai.ProviderError{Provider: Name, Kind: ai.KindUnexpected, Reason: "video input not supported"}
	}
	dataURL := "data:" + media.MimeType + ";base64," + base64.StdEncoding.EncodeToString(media.Data)
	return tiered.Run(ctx, Name, c.cfg.Models, func(ctx context.Context, model string) (string, error) {
		return c.complete(ctx, model, dataURL, prompt)
	})
}

func (c *Client) complete(ctx context.Context, model, dataURL, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailHigh,
				}},
			},
		}},
	}
	// reasoning models (o1/o3/o4/gpt-5*) only accept MaxCompletionTokens
	if isReasoningModel(model) {
		req.MaxCompletionTokens = c.cfg.MaxTokens
	} else {
		req.MaxTokens = c.cfg.MaxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(ctx, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &ai.ProviderError{Provider: Name, Kind: ai.KindUnexpected, Reason: "empty response"}
	}
	return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func classify(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return ai.FromStatus(Name, apiErr.HTTPStatusCode, []byte(apiErr.Message))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return ai.FromStatus(Name, reqErr.HTTPStatusCode, []byte(reqErr.Error()))
	}
	return ai.FromTransport(ctx, Name, err)
}
