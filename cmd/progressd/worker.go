package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-tracker/internal/app"
	"github.com/joseph-ayodele/inspection-tracker/internal/async"
	"github.com/joseph-ayodele/inspection-tracker/internal/repository"
)

// worker runs queued jobs: inbox paths are uploaded, report ids are retried.
type worker struct {
	svc    *app.Services
	logger *slog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]struct{} // retries queued but not yet finished
	parked  map[uuid.UUID]struct{} // retries waiting for a forced confirmation
}

func newWorker(svc *app.Services, logger *slog.Logger) *worker {
	return &worker{
		svc:     svc,
		logger:  logger,
		pending: map[uuid.UUID]struct{}{},
		parked:  map[uuid.UUID]struct{}{},
	}
}

func (w *worker) handle(ctx context.Context, job async.Job) error {
	if job.ReportID != uuid.Nil {
		defer w.done(job.ReportID)
		res, err := w.svc.Retrier.Retry(ctx, job.ReportID, job.Force)
		if err != nil {
			return err
		}
		if res.RequiresConfirmation && !job.Force {
			w.park(job.ReportID)
		}
		w.logger.Info("cron.retry.done",
			"report_id", job.ReportID,
			"success", res.Success,
			"has_errors", res.HasErrors,
			"requires_confirmation", res.RequiresConfirmation,
			"work_items", res.WorkItemsCreated,
		)
		return nil
	}

	sum, err := w.svc.Batch.Files(ctx, []string{job.Path}, job.Force)
	if err != nil {
		return err
	}
	for _, o := range sum.Outcomes {
		w.logger.Info("inbox.ingested",
			"path", o.Source,
			"report_id", o.ReportID,
			"status", o.Status,
			"detail", o.Detail,
			"work_items", o.WorkItems,
		)
	}
	if sum.Errors > 0 {
		return errors.New(sum.Outcomes[0].Detail)
	}
	return nil
}

// cron periodically queues reports whose extraction failed for another
// attempt. Rejected reports and reports waiting for confirmation are left
// for the operator.
func (w *worker) cron(ctx context.Context, queue *async.Queue, every time.Duration, batchSize int) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if err := w.tick(ctx, queue, batchSize); err != nil && ctx.Err() == nil {
			w.logger.Warn("cron.tick.failed", "error", err)
		}
	}
}

func (w *worker) tick(ctx context.Context, queue *async.Queue, batchSize int) error {
	w.mu.Lock()
	skip := len(w.parked)
	w.mu.Unlock()
	limit := 0
	if batchSize > 0 {
		limit = batchSize + skip
	}
	reps, err := w.svc.Reports.List(ctx, repository.ReportFilter{
		ProjectID: w.svc.Project.ID,
		Retryable: true,
		Limit:     limit,
	})
	if err != nil {
		return fmt.Errorf("list retryable: %w", err)
	}
	queued := 0
	for _, rep := range reps {
		if batchSize > 0 && queued >= batchSize {
			break
		}
		if w.isParked(rep.ID) || !w.claim(rep.ID) {
			continue
		}
		if err := queue.Enqueue(ctx, async.Job{Path: rep.FilePath, ReportID: rep.ID}); err != nil {
			w.done(rep.ID)
			return err
		}
		queued++
	}
	w.logger.Info("cron.tick", "candidates", len(reps), "queued", queued, "parked", skip)
	return nil
}

func (w *worker) claim(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pending[id]; ok {
		return false
	}
	w.pending[id] = struct{}{}
	return true
}

func (w *worker) done(id uuid.UUID) {
	w.mu.Lock()
	delete(w.pending, id)
	w.mu.Unlock()
}

func (w *worker) park(id uuid.UUID) {
	w.mu.Lock()
	w.parked[id] = struct{}{}
	w.mu.Unlock()
}

func (w *worker) isParked(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.parked[id]
	return ok
}
