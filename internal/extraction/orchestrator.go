package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
)

const (
	minResponseChars = 20
	minItems         = 5
	chunkSize        = 3
)

type Config struct {
	Timeout           time.Duration // per provider call
	RequestsPerMinute float64       // per provider; <= 0 disables the limiter
	RateLimitRetries  int
	MinBackoff        time.Duration
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.RateLimitRetries < 0 {
		c.RateLimitRetries = 0
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = 2 * time.Second
	}
}

type provider struct {
	llm.Extractor
	limiter *rate.Limiter
}

// Orchestrator drives the providers in their registration order.
type Orchestrator struct {
	cfg       Config
	prompts   llm.Prompts
	providers []provider
	logger    *slog.Logger
}

// Result is a decoded extraction.
type Result struct {
	Payload  *llm.ReportPayload
	Raw      []byte // sanitized JSON, kept for audit
	Provider string
	Chunked  bool
	Attempts []string // failures seen on the way, including recovered ones
}

// Reply is the first usable provider answer.
type Reply struct {
	Text     string
	Provider string
	Failures []string
}

func New(cfg Config, prompts llm.Prompts, logger *slog.Logger, extractors ...llm.Extractor) *Orchestrator {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute / 60)
	}
	ps := make([]provider, 0, len(extractors))
	for _, e := range extractors {
		if e == nil {
			continue
		}
		ps = append(ps, provider{Extractor: e, limiter: rate.NewLimiter(limit, 1)})
	}
	return &Orchestrator{cfg: cfg, prompts: prompts, providers: ps, logger: logger}
}

// Providers lists the registered provider names in order.
func (o *Orchestrator) Providers() []string {
	out := make([]string, len(o.providers))
	for i, p := range o.providers {
		out[i] = p.Name()
	}
	return out
}

// Extract runs the full-document prompt and falls back to chunked extraction
// when the answer does not parse or is too small to be complete.
func (o *Orchestrator) Extract(ctx context.Context, document []byte, mimeType string) (*Result, error) {
	log := o.logger.With("run_id", common.RunIDFromContext(ctx))

	reply, err := o.TryProviders(ctx, o.prompts.Full(), document, mimeType)
	if err != nil {
		return nil, err
	}

	payload, raw, derr := llm.DecodePayload(reply.Text, log)
	switch {
	case derr != nil:
		log.Warn("extract.incomplete", "provider", reply.Provider, "reason", "decode", "error", derr)
	case len(payload.Apartments) == 0 || payload.ItemCount() < minItems:
		log.Warn("extract.incomplete",
			"provider", reply.Provider,
			"apartments", len(payload.Apartments),
			"items", payload.ItemCount(),
		)
	default:
		log.Info("extract.ok",
			"provider", reply.Provider,
			"apartments", len(payload.Apartments),
			"items", payload.ItemCount(),
		)
		return &Result{Payload: payload, Raw: raw, Provider: reply.Provider, Attempts: reply.Failures}, nil
	}

	res, err := o.extractChunked(ctx, document, mimeType)
	if err != nil {
		return nil, err
	}
	res.Attempts = append(reply.Failures, res.Attempts...)
	return res, nil
}

// TryProviders returns the first answer of at least 20 characters. Rate-limited
// calls are retried with backoff before moving on to the next provider.
func (o *Orchestrator) TryProviders(ctx context.Context, prompt string, document []byte, mimeType string) (*Reply, error) {
	log := o.logger.With("run_id", common.RunIDFromContext(ctx))
	var failures []string

	for _, p := range o.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := o.call(ctx, p, prompt, document, mimeType)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn("extract.provider_failed", "provider", p.Name(), "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}
		if n := len([]rune(strings.TrimSpace(text))); n < minResponseChars {
			log.Warn("extract.provider_short_response", "provider", p.Name(), "chars", n)
			failures = append(failures, fmt.Sprintf("%s: response too short (%d chars)", p.Name(), n))
			continue
		}
		return &Reply{Text: text, Provider: p.Name(), Failures: failures}, nil
	}

	if len(o.providers) == 0 {
		failures = append(failures, "no providers configured")
	}
	log.Error("extract.blocking_failure", "attempts", failures)
	return nil, &BlockingFailure{Attempts: failures}
}

func (o *Orchestrator) call(ctx context.Context, p provider, prompt string, document []byte, mimeType string) (string, error) {
	var text string
	err := retry.Do(
		func() error {
			if err := p.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
			defer cancel()

			t, err := p.Extract(callCtx, prompt, document, mimeType)
			if err != nil {
				return err
			}
			text = t
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(o.cfg.RateLimitRetries+1)),
		retry.RetryIf(llm.IsRateLimited),
		retry.DelayType(o.backoff),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			o.logger.Warn("extract.rate_limited", "provider", p.Name(), "attempt", n+1, "error", err)
		}),
	)
	return text, err
}

// backoff waits max(Retry-After, MinBackoff * 2^n).
func (o *Orchestrator) backoff(n uint, err error, _ *retry.Config) time.Duration {
	if n > 10 {
		n = 10
	}
	d := o.cfg.MinBackoff << n
	var ae *llm.AdapterError
	if errors.As(err, &ae) && ae.RetryAfter > d {
		d = ae.RetryAfter
	}
	return d
}
