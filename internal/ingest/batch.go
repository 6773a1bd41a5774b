package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OutcomeStatus string

const (
	OutcomeAccepted          OutcomeStatus = "accepted"
	OutcomeRejected          OutcomeStatus = "rejected"
	OutcomeFailed            OutcomeStatus = "extraction_failed"
	OutcomeNeedsConfirmation OutcomeStatus = "needs_confirmation"
	OutcomeSkipped           OutcomeStatus = "skipped"
	OutcomeError             OutcomeStatus = "error"
)

// Outcome is the per-document result of a batch run.
type Outcome struct {
	Source    string        `json:"source" yaml:"source"`
	ReportID  uuid.UUID     `json:"report_id" yaml:"report_id"`
	Status    OutcomeStatus `json:"status" yaml:"status"`
	Detail    string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	Warnings  []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	WorkItems int           `json:"work_items" yaml:"work_items"`
}

// Summary aggregates a batch run.
type Summary struct {
	Scanned           int       `json:"scanned" yaml:"scanned"`
	Accepted          int       `json:"accepted" yaml:"accepted"`
	Rejected          int       `json:"rejected" yaml:"rejected"`
	Failed            int       `json:"failed" yaml:"failed"`
	NeedsConfirmation int       `json:"needs_confirmation" yaml:"needs_confirmation"`
	Skipped           int       `json:"skipped" yaml:"skipped"`
	Errors            int       `json:"errors" yaml:"errors"`
	Outcomes          []Outcome `json:"outcomes" yaml:"outcomes"`
}

func (s *Summary) add(o Outcome) {
	s.Scanned++
	switch o.Status {
	case OutcomeAccepted:
		s.Accepted++
	case OutcomeRejected:
		s.Rejected++
	case OutcomeFailed:
		s.Failed++
	case OutcomeNeedsConfirmation:
		s.NeedsConfirmation++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Errors++
	}
	s.Outcomes = append(s.Outcomes, o)
}

func classify(source string, res *Result, err error) Outcome {
	o := Outcome{Source: source}
	switch {
	case err != nil:
		o.Status = OutcomeError
		o.Detail = err.Error()
		return o
	case res == nil:
		o.Status = OutcomeError
		o.Detail = "no result"
		return o
	}
	o.ReportID = res.ReportID
	o.Warnings = res.Warnings
	o.WorkItems = res.WorkItemsCreated
	switch {
	case res.Duplicate && res.RequiresConfirmation:
		o.Status = OutcomeSkipped
		o.Detail = strings.Join(res.Warnings, "; ")
	case res.RequiresConfirmation:
		o.Status = OutcomeNeedsConfirmation
	case res.HasErrors && res.Success:
		o.Status = OutcomeRejected
		o.Detail = res.ErrorDetail
	case res.HasErrors:
		o.Status = OutcomeFailed
		o.Detail = res.ErrorDetail
	default:
		o.Status = OutcomeAccepted
	}
	return o
}

// Cooldown sleeps for d or until ctx is done.
func Cooldown(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Batch uploads many documents strictly one after another.
type Batch struct {
	uploader *Uploader
	cooldown time.Duration
	logger   *slog.Logger
}

func NewBatch(uploader *Uploader, cooldown time.Duration, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{uploader: uploader, cooldown: cooldown, logger: logger}
}

// Directory walks root and uploads every allowed, non-hidden file in
// lexical order.
func (b *Batch) Directory(ctx context.Context, root string, force bool) (Summary, error) {
	if strings.TrimSpace(root) == "" {
		return Summary{}, errors.New("root path is required")
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("walk %s: %w", root, err)
	}
	return b.Files(ctx, paths, force)
}

// Files uploads the given paths in order. After a document that created
// work items the batch pauses for the cooldown.
func (b *Batch) Files(ctx context.Context, paths []string, force bool) (Summary, error) {
	var sum Summary
	b.logger.Info("batch.start", "files", len(paths), "force", force)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		o := b.one(ctx, path, force)
		sum.add(o)
		b.logger.Info("batch.file", "path", path, "status", o.Status, "report_id", o.ReportID, "work_items", o.WorkItems)
		if o.Status == OutcomeError && IsCancelled(ctx.Err()) {
			return sum, ctx.Err()
		}
		if o.WorkItems > 0 && i < len(paths)-1 {
			if err := Cooldown(ctx, b.cooldown); err != nil {
				return sum, err
			}
		}
	}
	b.logger.Info("batch.done",
		"scanned", sum.Scanned,
		"accepted", sum.Accepted,
		"rejected", sum.Rejected,
		"failed", sum.Failed,
		"needs_confirmation", sum.NeedsConfirmation,
		"skipped", sum.Skipped,
		"errors", sum.Errors,
	)
	return sum, nil
}

func (b *Batch) one(ctx context.Context, path string, force bool) Outcome {
	doc, err := os.ReadFile(path)
	if err != nil {
		return classify(path, nil, fmt.Errorf("read %s: %w", path, errors.Join(ErrStorage, err)))
	}
	res, err := b.uploader.Upload(ctx, Upload{FileName: filepath.Base(path), Document: doc, Force: force})
	return classify(path, res, err)
}
