package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bryanwahyu/saqr/internal/domain/ai"
	"github.com/bryanwahyu/saqr/internal/infra/ai/tiered"
)

const (
	Name            = "anthropic"
	DefaultEndpoint = "https://api.anthropic.com"
	apiVersion      = "2023-06-01"
	defaultTokens   = 4096
)

// DefaultModels is the accuracy tier followed by the cost tier.
var DefaultModels = []string{"claude-sonnet-4-5", "claude-haiku-4-5"}

type Config struct {
	APIKey     string
	Endpoint   string
	Models     []string
	MaxTokens  int
	Scale      ai.ConfidenceScale
	HTTPClient *http.Client
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultTokens
	}
	if cfg.Scale == "" {
		cfg.Scale = ai.ScalePercent
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{cfg: cfg, http: hc}
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
	return tiered.Run(ctx, Name, c.cfg.Models, func(ctx context.Context, model string) (string, error) {
		return c.message(ctx, model, media, prompt)
	})
}

func (c *Client) message(ctx context.Context, model string, media ai.Media, prompt string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     model,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []message{{
			Role: "user",
			Content: []block{
				{Type: "image", Source: &imageSource{
					Type:      "base64",
					MediaType: media.MimeType,
					Data:      base64.StdEncoding.EncodeToString(media.Data),
				}},
				{Type: "text", Text: prompt},
			},
		}},
	})
	if err != nil {
		return "", &ai.ProviderError{Provider: Name, Kind: ai.KindUnexpected, Reason: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", &ai.ProviderError{Provider: Name, Kind: ai.KindUnexpected, Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", ai.FromTransport(ctx, Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := tiered.ReadLimitedBody(resp.Body, tiered.MaxErrorBodySize)
		return "", ai.FromStatus(Name, resp.StatusCode, b)
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return "", ai.FromTransport(ctx, Name, err)
		}
		return "", &ai.ProviderError{Provider: Name, Kind: ai.KindUnexpected, Reason: "decode response", Err: err}
	}
	var sb strings.Builder
	for _, b := range out.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &ai.ProviderError{Provider: Name, Kind: ai.KindUnexpected, Reason: "empty response"}
	}
	return sb.String(), nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string  `json:"role"`
	Content []block `json:"content"`
}

type block struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content    []block `json:"content"`
	StopReason string  `json:"stop_reason"`
}
