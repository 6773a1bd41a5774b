package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-tracker/internal/entity"
	"github.com/joseph-ayodele/inspection-tracker/internal/repository"
)

// RestoreResult counts the rows written back by Restore.
type RestoreResult struct {
	ReportsRestored     int
	WorkItemsRestored   int
	InspectionsRestored int
}

// Manager captures and restores the full report state.
type Manager struct {
	client      *repository.Client
	reports     repository.ReportRepository
	workItems   repository.WorkItemRepository
	inspections repository.InspectionRepository
	snapshots   repository.SnapshotRepository
	logger      *slog.Logger
	now         func() time.Time
}

func NewManager(client *repository.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client:      client,
		reports:     repository.NewReportRepository(client, logger),
		workItems:   repository.NewWorkItemRepository(client, logger),
		inspections: repository.NewInspectionRepository(client, logger),
		snapshots:   repository.NewSnapshotRepository(client, logger),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create captures every report, work item and inspection.
func (m *Manager) Create(ctx context.Context, reason string) (*entity.Snapshot, error) {
	var snap *entity.Snapshot
	err := m.client.WithTx(ctx, func(ctx context.Context) error {
		data, err := m.capture(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		snap = &entity.Snapshot{
			ID:              uuid.New(),
			Reason:          reason,
			CreatedAt:       m.now(),
			ReportCount:     len(data.Reports),
			WorkItemCount:   len(data.WorkItems),
			InspectionCount: len(data.Inspections),
		}
		return m.snapshots.Create(ctx, snap, raw)
	})
	if err != nil {
		m.logger.Error("snapshot.create_failed", "reason", reason, "error", err)
		return nil, err
	}
	m.logger.Info("snapshot.created",
		"snapshot_id", snap.ID,
		"reason", reason,
		"reports", snap.ReportCount,
		"work_items", snap.WorkItemCount,
		"inspections", snap.InspectionCount,
	)
	return snap, nil
}

func (m *Manager) capture(ctx context.Context) (*entity.SnapshotData, error) {
	reports, err := m.reports.List(ctx, repository.ReportFilter{})
	if err != nil {
		return nil, err
	}
	items, err := m.workItems.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	inspections, err := m.inspections.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return &entity.SnapshotData{Reports: reports, WorkItems: items, Inspections: inspections}, nil
}

// CleanupOld keeps the newest keep snapshots and deletes the rest.
func (m *Manager) CleanupOld(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	all, err := m.snapshots.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(all) <= keep {
		return 0, nil
	}
	deleted := 0
	// oldest first
	for i := len(all) - 1; i >= keep; i-- {
		if err := m.snapshots.Delete(ctx, all[i].ID); err != nil {
			return deleted, err
		}
		deleted++
	}
	m.logger.Info("snapshot.cleanup", "deleted", deleted, "kept", keep)
	return deleted, nil
}

// Restore replaces all reports, work items and inspections with the content
// of the snapshot, in one transaction.
func (m *Manager) Restore(ctx context.Context, id uuid.UUID) (RestoreResult, error) {
	snap, raw, err := m.snapshots.Get(ctx, id)
	if err != nil {
		return RestoreResult{}, err
	}
	var data entity.SnapshotData
	if err := json.Unmarshal(raw, &data); err != nil {
		return RestoreResult{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}

	var res RestoreResult
	err = m.client.WithTx(ctx, func(ctx context.Context) error {
		if _, err := m.inspections.DeleteAll(ctx); err != nil {
			return err
		}
		if _, err := m.workItems.DeleteAll(ctx); err != nil {
			return err
		}
		if _, err := m.reports.DeleteAll(ctx); err != nil {
			return err
		}

		for _, r := range data.Reports {
			if err := m.reports.Create(ctx, r); err != nil {
				return err
			}
		}
		if err := m.workItems.CreateBulk(ctx, data.WorkItems); err != nil {
			return err
		}
		for _, in := range data.Inspections {
			if _, err := m.inspections.Upsert(ctx, in); err != nil {
				return err
			}
		}
		res = RestoreResult{
			ReportsRestored:     len(data.Reports),
			WorkItemsRestored:   len(data.WorkItems),
			InspectionsRestored: len(data.Inspections),
		}
		return nil
	})
	if err != nil {
		m.logger.Error("snapshot.restore_failed", "snapshot_id", id, "error", err)
		return RestoreResult{}, err
	}
	m.logger.Info("snapshot.restored",
		"snapshot_id", id,
		"reason", snap.Reason,
		"reports", res.ReportsRestored,
		"work_items", res.WorkItemsRestored,
		"inspections", res.InspectionsRestored,
	)
	return res, nil
}

// List returns snapshots newest first.
func (m *Manager) List(ctx context.Context) ([]*entity.Snapshot, error) {
	return m.snapshots.List(ctx)
}

// Get returns a snapshot and its captured data.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*entity.Snapshot, *entity.SnapshotData, error) {
	snap, raw, err := m.snapshots.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	var data entity.SnapshotData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snap, &data, nil
}
