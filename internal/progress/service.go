package progress

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-tracker/internal/repository"
)

// Service loads the finalized report history and runs the engine over it.
type Service struct {
	reports   repository.ReportRepository
	workItems repository.WorkItemRepository
	engine    atomic.Pointer[Engine]
	logger    *slog.Logger
}

func NewService(reports repository.ReportRepository, workItems repository.WorkItemRepository, engine *Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{reports: reports, workItems: workItems, logger: logger}
	s.engine.Store(engine)
	return s
}

// SetConfig swaps the engine for one built from cfg. An invalid cfg keeps
// the current engine.
func (s *Service) SetConfig(cfg Config) error {
	e, err := NewEngine(cfg)
	if err != nil {
		return err
	}
	s.engine.Store(e)
	s.logger.Info("progress.engine.updated")
	return nil
}

// Timeline returns the cumulative progress after each finalized report of
// the project. A nil projectID covers all projects.
func (s *Service) Timeline(ctx context.Context, projectID uuid.UUID) ([]ReportProgress, error) {
	history, err := s.History(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := s.engine.Load().Reconcile(history)
	s.logger.Debug("progress.timeline", "reports", len(out))
	return out, nil
}

// History loads finalized reports with their items.
func (s *Service) History(ctx context.Context, projectID uuid.UUID) ([]ReportHistory, error) {
	reports, err := s.reports.List(ctx, repository.ReportFilter{ProjectID: projectID, Finalized: true})
	if err != nil {
		return nil, err
	}
	out := make([]ReportHistory, 0, len(reports))
	for _, r := range reports {
		items, err := s.workItems.ListByReport(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		h := ReportHistory{
			ReportID:  r.ID,
			FileName:  r.FileName,
			Date:      r.ReportDate,
			CreatedAt: r.CreatedAt,
			HasErrors: r.HasErrors,
			Items:     make([]ItemRecord, 0, len(items)),
		}
		for _, it := range items {
			h.Items = append(h.Items, ItemRecord{
				Category:    it.Category,
				Description: it.Description,
				Status:      it.Status,
				Notes:       it.Notes,
			})
		}
		out = append(out, h)
	}
	return out, nil
}
