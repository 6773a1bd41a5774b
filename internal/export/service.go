package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/inspection-tracker/constants"
	"github.com/joseph-ayodele/inspection-tracker/internal/progress"
)

const (
	progressSheet   = "Progress"
	categoriesSheet = "Categories"
)

// TimelineSource produces the reconciled progress series.
type TimelineSource interface {
	Timeline(ctx context.Context, projectID uuid.UUID) ([]progress.ReportProgress, error)
}

// Service turns the progress timeline into XLSX workbooks.
type Service struct {
	timeline TimelineSource
	logger   *slog.Logger
}

func NewService(timeline TimelineSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{timeline: timeline, logger: logger}
}

// TimelineXLSX returns a workbook (as bytes) with one row per report.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> every report.
// The window only filters rows; values are always reconciled over the full
// history.
func (s *Service) TimelineXLSX(ctx context.Context, projectID uuid.UUID, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	series, err := s.timeline.Timeline(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("build timeline: %w", err)
	}
	rows := window(series, from, to)

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", progressSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(categoriesSheet); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(progressSheet)
	f.SetActiveSheet(idx)

	if err := fillProgress(f, rows); err != nil {
		return nil, fmt.Errorf("xlsx %s sheet: %w", progressSheet, err)
	}
	if err := fillCategories(f, rows); err != nil {
		return nil, fmt.Errorf("xlsx %s sheet: %w", categoriesSheet, err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"project_id", projectID.String(),
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func window(series []progress.ReportProgress, from, to *time.Time) []progress.ReportProgress {
	var fromDate, toDate *time.Time
	if from != nil {
		f := dateOnly(*from)
		fromDate = &f
	}
	if to != nil {
		t := dateOnly(*to)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		t := dateOnly(time.Now().UTC())
		toDate = &t
	}

	out := make([]progress.ReportProgress, 0, len(series))
	for _, r := range series {
		d := dateOnly(r.Date)
		if fromDate != nil && d.Before(*fromDate) {
			continue
		}
		if toDate != nil && d.After(*toDate) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func fillProgress(f *excelize.File, rows []progress.ReportProgress) error {
	headers := []string{
		"Report Date",
		"File",
		"Overall %",
		"Delta",
		"Items",
		"Completed",
		"In Progress",
		"Defects",
		"Resolved",
		"Errors",
	}
	if err := writeRow(f, progressSheet, 1, toAny(headers)...); err != nil {
		return err
	}
	for i, r := range rows {
		errFlag := ""
		if r.HasErrors {
			errFlag = "yes"
		}
		err := writeRow(f, progressSheet, i+2,
			r.Date.Format("2006-01-02"),
			r.FileName,
			r.Overall,
			r.Delta,
			r.Counts.Total,
			r.Counts.Completed,
			r.Counts.InProgress,
			r.Counts.Defects,
			r.Counts.Resolved,
			errFlag,
		)
		if err != nil {
			return err
		}
	}
	return setWidths(f, progressSheet, map[string]float64{"A:A": 14, "B:B": 40, "C:J": 12})
}

func fillCategories(f *excelize.File, rows []progress.ReportProgress) error {
	cats := constants.AsStringSlice()
	catHeaders := append([]any{"Report Date", "File"}, toAny(cats)...)
	if err := writeRow(f, categoriesSheet, 1, catHeaders...); err != nil {
		return err
	}
	for i, r := range rows {
		vals := []any{r.Date.Format("2006-01-02"), r.FileName}
		for _, c := range cats {
			if v, ok := r.Categories[c]; ok {
				vals = append(vals, v)
			} else {
				vals = append(vals, "")
			}
		}
		if err := writeRow(f, categoriesSheet, i+2, vals...); err != nil {
			return err
		}
	}
	return setWidths(f, categoriesSheet, map[string]float64{"A:A": 14, "B:B": 40})
}

func writeRow(f *excelize.File, sheet string, row int, vals ...any) error {
	for i, v := range vals {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("cell %s: %w", cell, err)
		}
	}
	return nil
}

// setWidths takes column ranges such as "C:J".
func setWidths(f *excelize.File, sheet string, widths map[string]float64) error {
	for cols, w := range widths {
		from, to, _ := strings.Cut(cols, ":")
		if err := f.SetColWidth(sheet, from, to, w); err != nil {
			return fmt.Errorf("width %s: %w", cols, err)
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
