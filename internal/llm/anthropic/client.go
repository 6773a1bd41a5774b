package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/inspection-tracker/constants"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
)

const (
	Name           = "anthropic"
	apiVersion     = "2023-06-01"
	defaultBaseURL = "https://api.anthropic.com"
	defaultModel   = "claude-3-5-sonnet-20240620"
)

// Config for the Anthropic messages client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	HTTPClient *http.Client // optional (tests)
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc, logger: logger.With("provider", Name)}
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *sourceBlock `json:"source,omitempty"`
}

type sourceBlock struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) Name() string { return Name }

// Extract sends the PDF as a base64 document block followed by the prompt.
func (c *Client) Extract(ctx context.Context, prompt string, document []byte, mimeType string) (string, error) {
	if !llm.SupportsMIME(mimeType, constants.MimePDF) {
		return "", llm.NewAdapterError(Name, 0, fmt.Errorf("%w: %s", llm.ErrUnsupportedMIME, mimeType))
	}

	body := request{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{
					Type: "document",
					Source: &sourceBlock{
						Type:      "base64",
						MediaType: constants.MimePDF,
						Data:      base64.StdEncoding.EncodeToString(document),
					},
				},
				{Type: "text", Text: prompt},
			},
		}},
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": apiVersion,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/messages"
	resp, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		return "", c.wrapError(resp, err)
	}

	var out response
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", llm.NewAdapterError(Name, resp.Status, fmt.Errorf("decode response: %w", err))
	}
	var b strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", llm.NewAdapterError(Name, resp.Status, llm.ErrEmptyResponse)
	}
	if out.StopReason == "max_tokens" {
		c.logger.Warn("llm.anthropic.truncated", "chars", len(text))
	}
	return text, nil
}

func (c *Client) wrapError(resp *llm.HTTPResponse, err error) error {
	if resp == nil {
		return llm.NewAdapterError(Name, 0, err)
	}
	ae := llm.NewAdapterError(Name, resp.Status, err)
	ae.RetryAfter = llm.ParseRetryAfter(resp.Header.Get("Retry-After"))

	var body response
	if json.Unmarshal(resp.Body, &body) == nil && body.Error != nil && body.Error.Message != "" {
		ae.Err = errors.New(body.Error.Type + ": " + body.Error.Message)
	}
	return ae
}

var _ llm.Extractor = (*Client)(nil)
