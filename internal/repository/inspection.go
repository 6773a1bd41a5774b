package repository

import (
	"context"
	stdsql "database/sql"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-tracker/internal/common"
	"github.com/joseph-ayodele/inspection-tracker/internal/entity"
)

var inspectionColumns = []string{
	"id", "report_id", "apartment_id", "category", "inspection_date", "status",
}

type InspectionRepository interface {
	// Upsert writes the inspection keyed by (report, apartment, category).
	// The returned bool is true when an existing row was updated.
	Upsert(ctx context.Context, in *entity.Inspection) (bool, error)
	DeleteByReport(ctx context.Context, reportID uuid.UUID) (int64, error)
	ListByReport(ctx context.Context, reportID uuid.UUID) ([]*entity.Inspection, error)
	ListAll(ctx context.Context) ([]*entity.Inspection, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type inspectionRepository struct {
	client *Client
	logger *slog.Logger
}

func NewInspectionRepository(client *Client, logger *slog.Logger) InspectionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &inspectionRepository{client: client, logger: logger}
}

func (r *inspectionRepository) Upsert(ctx context.Context, in *entity.Inspection) (bool, error) {
	updated := false
	err := r.client.WithTx(ctx, func(ctx context.Context) error {
		existing, err := r.list(ctx, entsql.And(
			entsql.EQ("report_id", in.ReportID.String()),
			entsql.EQ("apartment_id", in.ApartmentID.String()),
			entsql.EQ("category", in.Category),
		))
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			in.ID = existing[0].ID
			q, args := r.client.builder().Update("inspections").
				Set("inspection_date", formatDate(in.InspectionDate)).
				Set("status", nullable(in.Status)).
				Where(entsql.EQ("id", in.ID.String())).
				Query()
			if _, err := r.client.exec(ctx, q, args); err != nil {
				return common.DatabaseError("update inspection", err)
			}
			updated = true
			return nil
		}

		if in.ID == uuid.Nil {
			in.ID = uuid.New()
		}
		q, args := r.client.builder().Insert("inspections").
			Columns(inspectionColumns...).
			Values(in.ID.String(), in.ReportID.String(), in.ApartmentID.String(), in.Category,
				formatDate(in.InspectionDate), nullable(in.Status)).
			Query()
		if _, err := r.client.exec(ctx, q, args); err != nil {
			return common.DatabaseError("insert inspection", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to upsert inspection", "report_id", in.ReportID, "category", in.Category, "error", err)
		return false, err
	}
	return updated, nil
}

func (r *inspectionRepository) DeleteByReport(ctx context.Context, reportID uuid.UUID) (int64, error) {
	q, args := r.client.builder().Delete("inspections").
		Where(entsql.EQ("report_id", reportID.String())).
		Query()
	n, err := r.client.exec(ctx, q, args)
	if err != nil {
		return 0, common.DatabaseError("delete inspections", err)
	}
	return n, nil
}

func (r *inspectionRepository) ListByReport(ctx context.Context, reportID uuid.UUID) ([]*entity.Inspection, error) {
	return r.list(ctx, entsql.EQ("report_id", reportID.String()))
}

func (r *inspectionRepository) ListAll(ctx context.Context) ([]*entity.Inspection, error) {
	return r.list(ctx, nil)
}

func (r *inspectionRepository) DeleteAll(ctx context.Context) (int64, error) {
	q, args := r.client.builder().Delete("inspections").Query()
	n, err := r.client.exec(ctx, q, args)
	if err != nil {
		return 0, common.DatabaseError("delete inspections", err)
	}
	return n, nil
}

func (r *inspectionRepository) list(ctx context.Context, p *entsql.Predicate) ([]*entity.Inspection, error) {
	s := r.client.builder().Select(inspectionColumns...).From(r.client.builder().Table("inspections"))
	if p != nil {
		s.Where(p)
	}
	s.OrderBy(entsql.Asc(s.C("inspection_date")), entsql.Asc(s.C("id")))
	q, args := s.Query()

	var out []*entity.Inspection
	err := r.client.query(ctx, q, args, func(rows *entsql.Rows) error {
		var (
			id, reportID, apartmentID, category, date string
			status                                    stdsql.NullString
		)
		if err := rows.Scan(&id, &reportID, &apartmentID, &category, &date, &status); err != nil {
			return err
		}
		in := &entity.Inspection{Category: category, Status: ptr(status)}
		var err error
		if in.ID, err = parseID(id, "inspection"); err != nil {
			return err
		}
		if in.ReportID, err = parseID(reportID, "report"); err != nil {
			return err
		}
		if in.ApartmentID, err = parseID(apartmentID, "apartment"); err != nil {
			return err
		}
		if in.InspectionDate, err = parseDate(date); err != nil {
			return err
		}
		out = append(out, in)
		return nil
	})
	if err != nil {
		return nil, common.DatabaseError("list inspections", err)
	}
	return out, nil
}
