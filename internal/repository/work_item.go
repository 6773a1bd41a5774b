package repository

import (
	"context"
	stdsql "database/sql"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/entity"
)

var workItemColumns = []string{
	"id", "report_id", "apartment_id", "category", "location",
	"description", "status", "notes", "has_photo", "created_at",
}

// rows per INSERT; keeps bound parameters well under SQLite's limit.
const insertBatchSize = 50

type WorkItemRepository interface {
	CreateBulk(ctx context.Context, items []*entity.WorkItem) error
	DeleteByReport(ctx context.Context, reportID uuid.UUID) (int64, error)
	ListByReport(ctx context.Context, reportID uuid.UUID) ([]*entity.WorkItem, error)
	ListAll(ctx context.Context) ([]*entity.WorkItem, error)
	CountByReport(ctx context.Context, reportID uuid.UUID) (int, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type workItemRepository struct {
	client *Client
	logger *slog.Logger
}

func NewWorkItemRepository(client *Client, logger *slog.Logger) WorkItemRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &workItemRepository{client: client, logger: logger}
}

func (r *workItemRepository) CreateBulk(ctx context.Context, items []*entity.WorkItem) error {
	now := time.Now().UTC()
	for start := 0; start < len(items); start += insertBatchSize {
		end := min(start+insertBatchSize, len(items))
		ins := r.client.builder().Insert("work_items").Columns(workItemColumns...)
		for _, it := range items[start:end] {
			if it.ID == uuid.Nil {
				it.ID = uuid.New()
			}
			if it.CreatedAt.IsZero() {
				it.CreatedAt = now
			}
			ins.Values(
				it.ID.String(), it.ReportID.String(), nullableUUID(it.ApartmentID), it.Category,
				it.Location, it.Description, it.Status, it.Notes, it.HasPhoto, formatTime(it.CreatedAt),
			)
		}
		q, args := ins.Query()
		if _, err := r.client.exec(ctx, q, args); err != nil {
			r.logger.Error("failed to insert work items", "count", end-start, "error", err)
			return common.DatabaseError("insert work items", err)
		}
	}
	return nil
}

func (r *workItemRepository) DeleteByReport(ctx context.Context, reportID uuid.UUID) (int64, error) {
	q, args := r.client.builder().Delete("work_items").
		Where(entsql.EQ("report_id", reportID.String())).
		Query()
	n, err := r.client.exec(ctx, q, args)
	if err != nil {
		return 0, common.DatabaseError("delete work items", err)
	}
	return n, nil
}

func (r *workItemRepository) ListByReport(ctx context.Context, reportID uuid.UUID) ([]*entity.WorkItem, error) {
	return r.list(ctx, entsql.EQ("report_id", reportID.String()))
}

func (r *workItemRepository) ListAll(ctx context.Context) ([]*entity.WorkItem, error) {
	return r.list(ctx, nil)
}

func (r *workItemRepository) CountByReport(ctx context.Context, reportID uuid.UUID) (int, error) {
	q, args := r.client.builder().
		Select(entsql.Count("*")).
		From(r.client.builder().Table("work_items")).
		Where(entsql.EQ("report_id", reportID.String())).
		Query()
	n, err := r.client.count(ctx, q, args)
	if err != nil {
		return 0, common.DatabaseError("count work items", err)
	}
	return n, nil
}

func (r *workItemRepository) DeleteAll(ctx context.Context) (int64, error) {
	q, args := r.client.builder().Delete("work_items").Query()
	n, err := r.client.exec(ctx, q, args)
	if err != nil {
		return 0, common.DatabaseError("delete work items", err)
	}
	return n, nil
}

func (r *workItemRepository) list(ctx context.Context, p *entsql.Predicate) ([]*entity.WorkItem, error) {
	s := r.client.builder().Select(workItemColumns...).From(r.client.builder().Table("work_items"))
	if p != nil {
		s.Where(p)
	}
	s.OrderBy(entsql.Asc(s.C("created_at")), entsql.Asc(s.C("id")))
	q, args := s.Query()

	var out []*entity.WorkItem
	err := r.client.query(ctx, q, args, func(rows *entsql.Rows) error {
		var (
			id, reportID, category, location, desc, status, notes, created string
			apartmentID                                                    stdsql.NullString
			hasPhoto                                                       bool
		)
		if err := rows.Scan(&id, &reportID, &apartmentID, &category, &location, &desc, &status, &notes, &hasPhoto, &created); err != nil {
			return err
		}
		it := &entity.WorkItem{
			Category:    category,
			Location:    location,
			Description: desc,
			Status:      status,
			Notes:       notes,
			HasPhoto:    hasPhoto,
		}
		var err error
		if it.ID, err = parseID(id, "work item"); err != nil {
			return err
		}
		if it.ReportID, err = parseID(reportID, "report"); err != nil {
			return err
		}
		if apartmentID.Valid {
			aid, err := parseID(apartmentID.String, "apartment")
			if err != nil {
				return err
			}
			it.ApartmentID = &aid
		}
		if it.CreatedAt, err = parseTime(created); err != nil {
			return err
		}
		out = append(out, it)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list work items", "error", err)
		return nil, common.DatabaseError("list work items", err)
	}
	return out, nil
}
