package openai

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	Name             = "openai"
	defaultModel     = "gpt-4o"
	defaultMaxTokens = 4096
)

// Config for the OpenAI client.
type Config struct {
	APIKey     string
	BaseURL    string // empty uses the SDK default
	Model      string
	MaxTokens  int64
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	cfg    Config
	api    openai.Client
	text   TextSource
	logger *slog.Logger
}

// NewClient builds the adapter. text converts PDFs to plain text since the
// chat endpoint is sent text only.
func NewClient(cfg Config, text TextSource, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
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

	// retries belong to the orchestrator
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		cfg:    cfg,
		api:    openai.NewClient(opts...),
		text:   text,
		logger: logger.With("provider", Name),
	}
}
