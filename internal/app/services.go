package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/entity"
	"github.com/joseph-ayodele/inspection-tracker/internal/export"
	"github.com/joseph-ayodele/inspection-tracker/internal/extraction"
	"github.com/joseph-ayodele/inspection-tracker/internal/ingest"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm/anthropic"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm/gemini"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/inspection-tracker/internal/progress"
	"github.com/joseph-ayodele/inspection-tracker/internal/repository"
	"github.com/joseph-ayodele/inspection-tracker/internal/snapshot"
	"github.com/joseph-ayodele/inspection-tracker/internal/textextract"
	"github.com/joseph-ayodele/inspection-tracker/internal/validation"
)

// Services is the object graph shared by the binaries.
type Services struct {
	Config  *common.Config
	Logger  *slog.Logger
	DB      *repository.Client
	Project *entity.Project

	Reports   repository.ReportRepository
	Snapshots *snapshot.Manager

	Coordinator *ingest.Coordinator
	Store       *ingest.LocalStore
	Uploader    *ingest.Uploader
	Retrier     *ingest.Retrier
	Batch       *ingest.Batch

	ProgressConfig progress.Config
	Progress       *progress.Service
	Export         *export.Service
}

// Options tweak what New requires.
type Options struct {
	// RequireProviders fails New when no extraction provider is configured.
	// Read-only commands leave it off.
	RequireProviders bool
	// Extractors overrides the providers built from the config.
	Extractors []llm.Extractor
}

// NewLogger returns the JSON logger used by the binaries.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// OpenDatabase connects, migrates and seeds the configured project.
func OpenDatabase(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repository.Client, *entity.Project, error) {
	client, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, nil, common.DatabaseError("open", err)
	}
	if err := client.Migrate(ctx); err != nil {
		client.Close()
		return nil, nil, common.DatabaseError("migrate", err)
	}
	project, err := repository.NewProjectRepository(client, logger).
		EnsureProject(ctx, cfg.Project.Name, cfg.Project.Apartments)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	logger.Info("app.project.ready", "project_id", project.ID, "name", project.Name, "apartments", len(cfg.Project.Apartments))
	return client, project, nil
}

// Extractors builds the configured providers in fallback order: Anthropic,
// OpenAI, Gemini. Providers without a key are skipped.
func Extractors(cfg *common.Config, text *textextract.PDFText, logger *slog.Logger) []llm.Extractor {
	var out []llm.Extractor
	if p := cfg.LLM.Anthropic; p.APIKey != "" {
		out = append(out, anthropic.NewClient(anthropic.Config{
			APIKey:  p.APIKey,
			BaseURL: p.BaseURL,
			Model:   p.Model,
			Timeout: cfg.LLM.Timeout,
		}, logger))
	}
	if p := cfg.LLM.OpenAI; p.APIKey != "" {
		out = append(out, openai.NewClient(openai.Config{
			APIKey:  p.APIKey,
			BaseURL: p.BaseURL,
			Model:   p.Model,
			Timeout: cfg.LLM.Timeout,
		}, text, logger))
	}
	if p := cfg.LLM.Gemini; p.APIKey != "" {
		out = append(out, gemini.NewClient(gemini.Config{
			APIKey:  p.APIKey,
			BaseURL: p.BaseURL,
			Model:   p.Model,
			Timeout: cfg.LLM.Timeout,
		}, logger))
	}
	return out
}

// New validates cfg and builds every service. Close releases the database.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts Options) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(opts.RequireProviders && len(opts.Extractors) == 0); err != nil {
		return nil, err
	}

	progressCfg, err := progress.LoadConfig(cfg.ProgressConfigPath)
	if err != nil {
		return nil, fmt.Errorf("progress config: %w", err)
	}
	engine, err := progress.NewEngine(progressCfg)
	if err != nil {
		return nil, fmt.Errorf("progress config: %w", err)
	}

	client, project, err := OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	text := textextract.New(textextract.Config{
		PDFToText: cfg.Text.PDFToText,
		TempDir:   cfg.Text.TempDir,
	}, textextract.ExecRunner{Logger: logger}, logger)

	extractors := opts.Extractors
	if len(extractors) == 0 {
		extractors = Extractors(cfg, text, logger)
	}
	names := make([]string, 0, len(extractors))
	for _, e := range extractors {
		names = append(names, e.Name())
	}
	logger.Info("app.providers", "order", names)

	orchestrator := extraction.New(extraction.Config{
		Timeout:           cfg.LLM.Timeout,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		RateLimitRetries:  cfg.LLM.RateLimitRetries,
		MinBackoff:        cfg.LLM.RateLimitMinBackoff,
	}, llm.Prompts{
		ProjectName: cfg.Project.Name,
		Apartments:  cfg.Project.Apartments,
	}, logger, extractors...)

	snapshots := snapshot.NewManager(client, logger)
	coordinator := ingest.NewCoordinator(
		client,
		orchestrator,
		validation.NewHeuristic(text, logger),
		snapshots,
		ingest.CoordinatorConfig{SnapshotKeep: cfg.Ingest.SnapshotKeep},
		logger,
	)

	reports := repository.NewReportRepository(client, logger)
	store := ingest.NewLocalStore(cfg.Ingest.DocumentsDir)
	uploader := ingest.NewUploader(coordinator, store, reports, project.ID, logger)
	progressSvc := progress.NewService(reports, repository.NewWorkItemRepository(client, logger), engine, logger)

	return &Services{
		Config:         cfg,
		Logger:         logger,
		DB:             client,
		Project:        project,
		Reports:        reports,
		Snapshots:      snapshots,
		Coordinator:    coordinator,
		Store:          store,
		Uploader:       uploader,
		Retrier:        ingest.NewRetrier(coordinator, store, reports, cfg.Ingest.BatchCooldown, logger),
		Batch:          ingest.NewBatch(uploader, cfg.Ingest.BatchCooldown, logger),
		ProgressConfig: progressCfg,
		Progress:       progressSvc,
		Export:         export.NewService(progressSvc, logger),
	}, nil
}

// Close releases the database connection.
func (s *Services) Close() {
	if s == nil || s.DB == nil {
		return
	}
	s.DB.Close()
}

// IsUserError reports whether err stems from bad input rather than
// infrastructure, so binaries can pick an exit code.
func IsUserError(err error) bool {
	return errors.Is(err, common.ErrInvalidInput) || errors.Is(err, common.ErrNotFound)
}
