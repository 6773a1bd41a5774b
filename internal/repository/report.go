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

var reportColumns = []string{
	"id", "project_id", "file_name", "file_path", "content_hash", "report_date",
	"inspector", "raw_extraction", "page_count", "processed", "has_errors",
	"error_details", "has_warnings", "warning_details", "created_at", "updated_at",
}

// ReportFilter narrows List. Zero value lists every report of every project.
type ReportFilter struct {
	ProjectID   uuid.UUID
	Finalized   bool // processed or has_errors
	FailedOnly  bool // has_errors
	Unprocessed bool // processed = false
	Retryable   bool // processed = false and no stored extraction
	Accepted    bool // processed and error-free
	Limit       int
	NewestFirst bool
}

type ReportRepository interface {
	Create(ctx context.Context, report *entity.Report) error
	Update(ctx context.Context, report *entity.Report) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Report, error)
	FindByHash(ctx context.Context, projectID uuid.UUID, hash string) (*entity.Report, error)
	FindByFileName(ctx context.Context, projectID uuid.UUID, fileName string) (*entity.Report, error)
	List(ctx context.Context, filter ReportFilter) ([]*entity.Report, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type reportRepository struct {
	client *Client
	logger *slog.Logger
}

func NewReportRepository(client *Client, logger *slog.Logger) ReportRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &reportRepository{client: client, logger: logger}
}

// Create inserts the report. ID and timestamps are filled in when unset and
// kept otherwise, which lets snapshot restores write rows back verbatim.
func (r *reportRepository) Create(ctx context.Context, report *entity.Report) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	if report.UpdatedAt.IsZero() {
		report.UpdatedAt = report.CreatedAt
	}
	q, args := r.client.builder().Insert("reports").
		Columns(reportColumns...).
		Values(
			report.ID.String(), report.ProjectID.String(), report.FileName, report.FilePath,
			report.ContentHash, formatDate(report.ReportDate), nullable(report.Inspector),
			nullable(report.RawExtraction), report.PageCount, report.Processed, report.HasErrors,
			nullable(report.ErrorDetails), report.HasWarnings, nullable(report.WarningDetails),
			formatTime(report.CreatedAt), formatTime(report.UpdatedAt),
		).
		Query()
	if _, err := r.client.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to create report", "report_id", report.ID, "file_name", report.FileName, "error", err)
		return common.DatabaseError("create report", err)
	}
	return nil
}

func (r *reportRepository) Update(ctx context.Context, report *entity.Report) error {
	report.UpdatedAt = time.Now().UTC()
	q, args := r.client.builder().Update("reports").
		Set("file_name", report.FileName).
		Set("file_path", report.FilePath).
		Set("content_hash", report.ContentHash).
		Set("report_date", formatDate(report.ReportDate)).
		Set("inspector", nullable(report.Inspector)).
		Set("raw_extraction", nullable(report.RawExtraction)).
		Set("page_count", report.PageCount).
		Set("processed", report.Processed).
		Set("has_errors", report.HasErrors).
		Set("error_details", nullable(report.ErrorDetails)).
		Set("has_warnings", report.HasWarnings).
		Set("warning_details", nullable(report.WarningDetails)).
		Set("updated_at", formatTime(report.UpdatedAt)).
		Where(entsql.EQ("id", report.ID.String())).
		Query()
	n, err := r.client.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to update report", "report_id", report.ID, "error", err)
		return common.DatabaseError("update report", err)
	}
	if n == 0 {
		return common.NotFoundf("report %s", report.ID)
	}
	return nil
}

func (r *reportRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Report, error) {
	out, err := r.selectOne(ctx, entsql.EQ("id", id.String()))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, common.NotFoundf("report %s", id)
	}
	return out, nil
}

func (r *reportRepository) FindByHash(ctx context.Context, projectID uuid.UUID, hash string) (*entity.Report, error) {
	out, err := r.selectOne(ctx, entsql.And(
		entsql.EQ("project_id", projectID.String()),
		entsql.EQ("content_hash", hash),
	))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, common.NotFoundf("report with hash %s", hash)
	}
	return out, nil
}

func (r *reportRepository) FindByFileName(ctx context.Context, projectID uuid.UUID, fileName string) (*entity.Report, error) {
	out, err := r.selectOne(ctx, entsql.And(
		entsql.EQ("project_id", projectID.String()),
		entsql.EQ("file_name", fileName),
	))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, common.NotFoundf("report for file %q", fileName)
	}
	return out, nil
}

// List returns reports in chronological order (report date, then creation time).
func (r *reportRepository) List(ctx context.Context, f ReportFilter) ([]*entity.Report, error) {
	var preds []*entsql.Predicate
	if f.ProjectID != uuid.Nil {
		preds = append(preds, entsql.EQ("project_id", f.ProjectID.String()))
	}
	if f.Finalized {
		preds = append(preds, entsql.Or(entsql.EQ("processed", true), entsql.EQ("has_errors", true)))
	}
	if f.FailedOnly {
		preds = append(preds, entsql.EQ("has_errors", true))
	}
	if f.Unprocessed {
		preds = append(preds, entsql.EQ("processed", false))
	}
	if f.Retryable {
		preds = append(preds, entsql.EQ("processed", false), entsql.IsNull("raw_extraction"))
	}
	if f.Accepted {
		preds = append(preds, entsql.EQ("processed", true), entsql.EQ("has_errors", false))
	}

	s := r.client.builder().Select(reportColumns...).From(r.client.builder().Table("reports"))
	if len(preds) > 0 {
		s.Where(entsql.And(preds...))
	}
	order := entsql.Asc
	if f.NewestFirst {
		order = entsql.Desc
	}
	s.OrderBy(order(s.C("report_date")), order(s.C("created_at")), order(s.C("id")))
	if f.Limit > 0 {
		s.Limit(f.Limit)
	}
	q, args := s.Query()

	var out []*entity.Report
	err := r.client.query(ctx, q, args, func(rows *entsql.Rows) error {
		rep, err := scanReport(rows)
		if err != nil {
			return err
		}
		out = append(out, rep)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list reports", "error", err)
		return nil, common.DatabaseError("list reports", err)
	}
	return out, nil
}

func (r *reportRepository) DeleteAll(ctx context.Context) (int64, error) {
	q, args := r.client.builder().Delete("reports").Query()
	n, err := r.client.exec(ctx, q, args)
	if err != nil {
		return 0, common.DatabaseError("delete reports", err)
	}
	return n, nil
}

func (r *reportRepository) selectOne(ctx context.Context, p *entsql.Predicate) (*entity.Report, error) {
	s := r.client.builder().Select(reportColumns...).From(r.client.builder().Table("reports")).Where(p)
	s.OrderBy(entsql.Asc(s.C("created_at"))).Limit(1)
	q, args := s.Query()

	var out *entity.Report
	err := r.client.query(ctx, q, args, func(rows *entsql.Rows) error {
		rep, err := scanReport(rows)
		if err != nil {
			return err
		}
		out = rep
		return nil
	})
	if err != nil {
		return nil, common.DatabaseError("get report", err)
	}
	return out, nil
}

func scanReport(rows *entsql.Rows) (*entity.Report, error) {
	var (
		id, projectID, fileName, filePath, hash, date string
		inspector, raw, errDetails, warnDetails       stdsql.NullString
		pageCount                                     int
		processed, hasErrors, hasWarnings             bool
		created, updated                              string
	)
	if err := rows.Scan(
		&id, &projectID, &fileName, &filePath, &hash, &date,
		&inspector, &raw, &pageCount, &processed, &hasErrors,
		&errDetails, &hasWarnings, &warnDetails, &created, &updated,
	); err != nil {
		return nil, err
	}

	rep := &entity.Report{
		FileName:       fileName,
		FilePath:       filePath,
		ContentHash:    hash,
		Inspector:      ptr(inspector),
		RawExtraction:  ptr(raw),
		PageCount:      pageCount,
		Processed:      processed,
		HasErrors:      hasErrors,
		ErrorDetails:   ptr(errDetails),
		HasWarnings:    hasWarnings,
		WarningDetails: ptr(warnDetails),
	}
	var err error
	if rep.ID, err = parseID(id, "report"); err != nil {
		return nil, err
	}
	if rep.ProjectID, err = parseID(projectID, "project"); err != nil {
		return nil, err
	}
	if rep.ReportDate, err = parseDate(date); err != nil {
		return nil, err
	}
	if rep.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if rep.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return rep, nil
}
