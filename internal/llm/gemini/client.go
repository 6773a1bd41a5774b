package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joseph-ayodele/inspection-tracker/constants"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
)

const (
	Name           = "gemini"
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-1.5-flash"
)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
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

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
}

type request struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type response struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (c *Client) Name() string { return Name }

// Extract sends the document inline and asks for a JSON response.
func (c *Client) Extract(ctx context.Context, prompt string, document []byte, mimeType string) (string, error) {
	if !llm.SupportsMIME(mimeType, constants.MimePDF, constants.MimeJPEG, constants.MimePNG) {
		return "", llm.NewAdapterError(Name, 0, fmt.Errorf("%w: %s", llm.ErrUnsupportedMIME, mimeType))
	}

	body := request{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(document)}},
				{Text: prompt},
			},
		}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Model))
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	resp, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		return "", c.wrapError(resp, err)
	}

	var out response
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", llm.NewAdapterError(Name, resp.Status, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Candidates) == 0 {
		return "", llm.NewAdapterError(Name, resp.Status, llm.ErrEmptyResponse)
	}

	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", llm.NewAdapterError(Name, resp.Status, llm.ErrEmptyResponse)
	}
	if fr := out.Candidates[0].FinishReason; fr == "MAX_TOKENS" {
		c.logger.Warn("llm.gemini.truncated", "chars", len(text))
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
		ae.Err = errors.New(body.Error.Status + ": " + body.Error.Message)
	}
	return ae
}

var _ llm.Extractor = (*Client)(nil)
