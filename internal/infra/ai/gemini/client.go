package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bryanwahyu/saqr/internal/domain/ai"
	"github.com/bryanwahyu/saqr/internal/infra/ai/tiered"
)

const (
	Name            = "gemini"
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	defaultTokens   = 4096
)

// DefaultModels is the accuracy tier followed by the cost tier.
var DefaultModels = []string{"gemini-2.5-pro", "gemini-2.5-flash"}

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
func (c *Client) SupportsVideo() bool                 { return true }
func (c *Client) ConfidenceScale() ai.ConfidenceScale { return c.cfg.Scale }

func (c *Client) Analyze(ctx context.Context, media ai.Media, prompt string) (string, error) {
	if !c.Configured() {
		return "", ai.AuthMissing(Name)
	}
	body, err := json.Marshal(generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: prompt},
				{InlineData: &inlineData{MimeType: media.MimeType, Data: base64.StdEncoding.EncodeToString(media.Data)}},
			},
		}},
		GenerationConfig: generationConfig{
			MaxOutputTokens:  c.cfg.MaxTokens,
			Temperature:      0.1,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return "", &ai.ProviderError{Provider: Name, Kind: ai.KindUnexpected, Reason: "marshal request", Err: err}
	}
	return tiered.Run(ctx, Name, c.cfg.Models, func(ctx context.Context, model string) (string, error) {
		return c.generate(ctx, model, body)
	})
}

func (c *Client) generate(ctx context.Context, model string, body []byte) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.Endpoint, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &ai.ProviderError{Provider: Name, Kind: ai.KindUnexpected, Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	// key in header, never in the URL
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", ai.FromTransport(ctx, Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := tiered.ReadLimitedBody(resp.Body, tiered.MaxErrorBodySize)
		return "", ai.FromStatus(Name, resp.StatusCode, b)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return "", ai.FromTransport(ctx, Name, err)
		}
		return "", &ai.ProviderError{Provider: Name, Kind: ai.KindUnexpected, Reason: "decode response", Err: err}
	}
	if len(out.Candidates) == 0 {
		return "", &ai.ProviderError{Provider: Name, Kind: ai.KindUnexpected, Reason: "no candidates in response"}
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}
