package repository

import (
	"context"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/entity"
)

var snapshotColumns = []string{
	"id", "reason", "created_at", "report_count", "work_item_count", "inspection_count",
}

type SnapshotRepository interface {
	Create(ctx context.Context, snap *entity.Snapshot, data []byte) error
	// List returns snapshots newest first.
	List(ctx context.Context) ([]*entity.Snapshot, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Snapshot, []byte, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type snapshotRepository struct {
	client *Client
	logger *slog.Logger
}

func NewSnapshotRepository(client *Client, logger *slog.Logger) SnapshotRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &snapshotRepository{client: client, logger: logger}
}

func (r *snapshotRepository) Create(ctx context.Context, snap *entity.Snapshot, data []byte) error {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	q, args := r.client.builder().Insert("snapshots").
		Columns(append(snapshotColumns, "data")...).
		Values(snap.ID.String(), snap.Reason, formatTime(snap.CreatedAt),
			snap.ReportCount, snap.WorkItemCount, snap.InspectionCount, string(data)).
		Query()
	if _, err := r.client.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to create snapshot", "reason", snap.Reason, "error", err)
		return common.DatabaseError("create snapshot", err)
	}
	return nil
}

func (r *snapshotRepository) List(ctx context.Context) ([]*entity.Snapshot, error) {
	s := r.client.builder().Select(snapshotColumns...).From(r.client.builder().Table("snapshots"))
	s.OrderBy(entsql.Desc(s.C("created_at")), entsql.Desc(s.C("id")))
	q, args := s.Query()

	var out []*entity.Snapshot
	err := r.client.query(ctx, q, args, func(rows *entsql.Rows) error {
		snap, err := scanSnapshot(rows, nil)
		if err != nil {
			return err
		}
		out = append(out, snap)
		return nil
	})
	if err != nil {
		return nil, common.DatabaseError("list snapshots", err)
	}
	return out, nil
}

func (r *snapshotRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Snapshot, []byte, error) {
	q, args := r.client.builder().
		Select(append(snapshotColumns, "data")...).
		From(r.client.builder().Table("snapshots")).
		Where(entsql.EQ("id", id.String())).
		Query()

	var (
		out  *entity.Snapshot
		data string
	)
	err := r.client.query(ctx, q, args, func(rows *entsql.Rows) error {
		snap, err := scanSnapshot(rows, &data)
		if err != nil {
			return err
		}
		out = snap
		return nil
	})
	if err != nil {
		return nil, nil, common.DatabaseError("get snapshot", err)
	}
	if out == nil {
		return nil, nil, common.NotFoundf("snapshot %s", id)
	}
	return out, []byte(data), nil
}

func (r *snapshotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q, args := r.client.builder().Delete("snapshots").
		Where(entsql.EQ("id", id.String())).
		Query()
	if _, err := r.client.exec(ctx, q, args); err != nil {
		return common.DatabaseError("delete snapshot", err)
	}
	return nil
}

func scanSnapshot(rows *entsql.Rows, data *string) (*entity.Snapshot, error) {
	var (
		id, reason, created             string
		reports, workItems, inspections int
	)
	dest := []any{&id, &reason, &created, &reports, &workItems, &inspections}
	if data != nil {
		dest = append(dest, data)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	snap := &entity.Snapshot{
		Reason:          reason,
		ReportCount:     reports,
		WorkItemCount:   workItems,
		InspectionCount: inspections,
	}
	var err error
	if snap.ID, err = parseID(id, "snapshot"); err != nil {
		return nil, err
	}
	if snap.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return snap, nil
}
