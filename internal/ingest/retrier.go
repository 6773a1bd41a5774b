package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-tracker/constants"
	"github.com/joseph-ayodele/inspection-tracker/internal/repository"
)

// ReprocessFilter selects the reports ReprocessAll runs over.
type ReprocessFilter struct {
	ProjectID   uuid.UUID
	FailedOnly  bool // has_errors only
	Unprocessed bool // processed = false, which includes failed reports
	Limit       int
	Force       bool
}

// Retrier reruns stored documents through the coordinator.
type Retrier struct {
	coordinator *Coordinator
	store       Store
	reports     repository.ReportRepository
	cooldown    time.Duration
	logger      *slog.Logger
}

func NewRetrier(coordinator *Coordinator, store Store, reports repository.ReportRepository, cooldown time.Duration, logger *slog.Logger) *Retrier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{coordinator: coordinator, store: store, reports: reports, cooldown: cooldown, logger: logger}
}

// Retry reloads the report's document and processes it again in place.
// Storage failures surface before anything else happens.
func (r *Retrier) Retry(ctx context.Context, reportID uuid.UUID, force bool) (*Result, error) {
	rep, err := r.reports.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	doc, err := r.store.Load(rep.FilePath)
	if err != nil {
		r.logger.Error("retry.load.failed", "report_id", reportID, "file_path", rep.FilePath, "error", err)
		return nil, fmt.Errorf("retry %s: %w", reportID, err)
	}
	mime := constants.MimeForExt(filepath.Ext(rep.FileName))
	return r.coordinator.Process(ctx, Request{
		Document:         doc,
		FileName:         rep.FileName,
		MimeType:         mime,
		ProjectID:        rep.ProjectID,
		StorageRef:       rep.FilePath,
		ContentHash:      HashHex(doc),
		Force:            force,
		ExistingReportID: rep.ID,
	})
}

// ReprocessAll retries every matching report in date order, one at a time.
func (r *Retrier) ReprocessAll(ctx context.Context, f ReprocessFilter) (Summary, error) {
	reps, err := r.reports.List(ctx, repository.ReportFilter{
		ProjectID:   f.ProjectID,
		FailedOnly:  f.FailedOnly,
		Unprocessed: f.Unprocessed,
		Limit:       f.Limit,
	})
	if err != nil {
		return Summary{}, err
	}
	r.logger.Info("reprocess.start", "reports", len(reps), "failed_only", f.FailedOnly, "force", f.Force)

	var sum Summary
	for i, rep := range reps {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := r.Retry(ctx, rep.ID, f.Force)
		o := classify(rep.FileName, res, err)
		if o.ReportID == uuid.Nil {
			o.ReportID = rep.ID
		}
		sum.add(o)
		if IsCancelled(err) {
			return sum, err
		}
		if o.WorkItems > 0 && i < len(reps)-1 {
			if err := Cooldown(ctx, r.cooldown); err != nil {
				return sum, err
			}
		}
	}
	r.logger.Info("reprocess.done",
		"accepted", sum.Accepted,
		"rejected", sum.Rejected,
		"failed", sum.Failed,
		"needs_confirmation", sum.NeedsConfirmation,
	)
	return sum, nil
}
