package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/inspection-tracker/internal/progress"
)

type staticTimeline []progress.ReportProgress

func (s staticTimeline) Timeline(context.Context, uuid.UUID) ([]progress.ReportProgress, error) {
	return s, nil
}

type failingTimeline struct{}

func (failingTimeline) Timeline(context.Context, uuid.UUID) ([]progress.ReportProgress, error) {
	return nil, assert.AnError
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func series() staticTimeline {
	return staticTimeline{
		{
			FileName: "first.pdf", Date: day("2024-01-10"), Overall: 12, Delta: 12,
			Categories: map[string]int{"ELECTRICAL": 80},
			Counts:     progress.Counts{Total: 4, Completed: 3, InProgress: 1},
		},
		{
			FileName: "second.pdf", Date: day("2024-02-10"), Overall: 20, Delta: 8, HasErrors: true,
			Categories: map[string]int{"ELECTRICAL": 100, "PLUMBING": 40},
			Counts:     progress.Counts{Total: 3, Completed: 2, Defects: 1, Resolved: 1},
		},
	}
}

func open(t *testing.T, b []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

// cell tolerates rows shortened by trailing empty cells.
func cell(rows [][]string, r, c int) string {
	if r >= len(rows) || c >= len(rows[r]) {
		return ""
	}
	return rows[r][c]
}

func TestTimelineXLSX(t *testing.T) {
	svc := NewService(series(), nil)
	b, err := svc.TimelineXLSX(context.Background(), uuid.Nil, nil, nil)
	require.NoError(t, err)

	f := open(t, b)
	assert.Equal(t, []string{"Progress", "Categories"}, f.GetSheetList())

	rows, err := f.GetRows("Progress")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Overall %", rows[0][2])
	assert.Equal(t, []string{"2024-01-10", "first.pdf", "12", "12", "4", "3", "1", "0", "0"}, rows[1][:9])
	assert.Equal(t, "yes", cell(rows, 2, 9))

	cats, err := f.GetRows("Categories")
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, "ELECTRICAL", cell(cats, 0, 2))
	assert.Equal(t, "PLUMBING", cell(cats, 0, 3))
	assert.Equal(t, "80", cell(cats, 1, 2))
	assert.Equal(t, "", cell(cats, 1, 3))
	assert.Equal(t, "40", cell(cats, 2, 3))
}

func TestTimelineXLSXWindow(t *testing.T) {
	svc := NewService(series(), nil)
	from := day("2024-02-01")
	to := day("2024-02-28")
	b, err := svc.TimelineXLSX(context.Background(), uuid.Nil, &from, &to)
	require.NoError(t, err)

	rows, err := open(t, b).GetRows("Progress")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "second.pdf", rows[1][1])
}

func TestTimelineXLSXError(t *testing.T) {
	_, err := NewService(failingTimeline{}, nil).TimelineXLSX(context.Background(), uuid.Nil, nil, nil)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSheetWriteErrorsPropagate(t *testing.T) {
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })

	// a fresh workbook only has Sheet1
	err := fillProgress(f, series())
	require.Error(t, err)
	assert.Contains(t, err.Error(), progressSheet)

	require.Error(t, writeRow(f, categoriesSheet, 1, "x"))
	require.Error(t, writeRow(f, "Sheet1", 0, "x"))
	require.NoError(t, writeRow(f, "Sheet1", 1, "x"))

	require.Error(t, setWidths(f, "Sheet1", map[string]float64{"A:A": 300}))
	require.NoError(t, setWidths(f, "Sheet1", map[string]float64{"A:B": 20}))
}
