package validation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
)

var (
	now     = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	project = []string{"1", "3", "5", "6", "7", "10", "11", "14"}
)

func items(n int) []llm.WorkItem {
	out := make([]llm.WorkItem, n)
	for i := range out {
		out[i] = llm.WorkItem{Category: "חשמל", Description: fmt.Sprintf("נקודה %d", i+1), Status: "בוצע"}
	}
	return out
}

func payload(date string, apts ...llm.Apartment) *llm.ReportPayload {
	return &llm.ReportPayload{ReportDate: date, Apartments: apts}
}

func TestCleanPayloadIsHighConfidence(t *testing.T) {
	r := ValidateContent(Input{
		Payload:         payload("2024-05-20", llm.Apartment{ApartmentNumber: "3", WorkItems: items(6)}),
		FileName:        "report.pdf",
		HasUnitData:     true,
		KnownApartments: project,
		Now:             now,
	})
	assert.True(t, r.Valid)
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Warnings)
	assert.Equal(t, ConfidenceHigh, r.Confidence)
	assert.Equal(t, time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), r.ReportDate)
}

func TestStructureMismatch(t *testing.T) {
	r := ValidateContent(Input{
		Payload:     payload("2024-05-20"),
		FileName:    "report.pdf",
		HasUnitData: true,
		Now:         now,
	})
	assert.False(t, r.Valid)
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0], "structure mismatch")
	assert.Equal(t, ConfidenceInvalid, r.Confidence)
}

func TestGenuinelyEmptyReportWarns(t *testing.T) {
	r := ValidateContent(Input{
		Payload:     payload("2024-05-20"),
		FileName:    "report.pdf",
		HasUnitData: false,
		Now:         now,
	})
	assert.True(t, r.Valid)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "genuinely empty")
	assert.Equal(t, ConfidenceMedium, r.Confidence)
}

func TestReportDate(t *testing.T) {
	apt := llm.Apartment{ApartmentNumber: "1", WorkItems: items(5)}

	r := ValidateContent(Input{Payload: payload("", apt), FileName: "דוח 12.3.24.pdf", HasUnitData: true, Now: now})
	assert.True(t, r.Valid)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), r.ReportDate)

	r = ValidateContent(Input{Payload: payload("", apt), FileName: "report.pdf", HasUnitData: true, Now: now})
	assert.False(t, r.Valid)
	assert.Contains(t, r.Errors[0], "report date missing")

	r = ValidateContent(Input{Payload: payload("sometime in march", apt), FileName: "report.pdf", HasUnitData: true, Now: now})
	assert.False(t, r.Valid)
	assert.Contains(t, r.Errors[0], "not a recognizable date")
}

func TestReportDateFallsBackFromOtherLayouts(t *testing.T) {
	apt := llm.Apartment{ApartmentNumber: "1", WorkItems: items(5)}
	tests := []struct {
		name string
		date string
		file string
		want time.Time
	}{
		{"slashed payload date", "18/09/2023", "report.pdf", time.Date(2023, 9, 18, 0, 0, 0, 0, time.UTC)},
		{"dotted payload date", "18.9.23", "report.pdf", time.Date(2023, 9, 18, 0, 0, 0, 0, time.UTC)},
		{"garbage date uses file name", "n/a", "report 12.3.24.pdf", time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)},
		{"payload date wins over file name", "12/03/2024", "2023-01-01.pdf", time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ValidateContent(Input{Payload: payload(tt.date, apt), FileName: tt.file, HasUnitData: true, Now: now})
			assert.True(t, r.Valid, r.Errors)
			assert.Equal(t, tt.want, r.ReportDate)
		})
	}
}

func TestWarnings(t *testing.T) {
	p := payload("2024-07-01",
		llm.Apartment{ApartmentNumber: "3", WorkItems: []llm.WorkItem{
			{Category: "נגרות", Description: "התקנת משקופים", Status: "בוצע"},
			{Category: "חשמל", Description: "", Status: "מצב לא ידוע"},
		}},
		llm.Apartment{ApartmentNumber: "99", WorkItems: items(1)},
		llm.Apartment{ApartmentNumber: "", WorkItems: items(1)},
	)
	r := ValidateContent(Input{
		Payload:          p,
		FileName:         "report.pdf",
		HasUnitData:      true,
		KnownApartments:  project,
		RecentItemCounts: []int{40, 40, 40, 40, 40, 1000},
		ExistingDates:    []time.Time{time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
		Now:              now,
	})
	assert.True(t, r.Valid)
	assert.Equal(t, ConfidenceLow, r.Confidence)
	assert.ElementsMatch(t, []string{
		`unrecognized category "נגרות", defaulted to OTHER`,
		`unrecognized status "מצב לא ידוע", defaulted to IN_PROGRESS`,
		"apartment 99 is not part of the project",
		"1 apartment entries without a number",
		"1 work items without a description",
		"only 4 work items, well below the recent average of 40",
		"report date 2024-07-01 is in the future",
		"another report is already dated 2024-07-01",
	}, r.Warnings)
}

func TestLowCountUsesOnlyRecentWindow(t *testing.T) {
	r := ValidateContent(Input{
		Payload:          payload("2024-05-20", llm.Apartment{ApartmentNumber: "1", WorkItems: items(6)}),
		HasUnitData:      true,
		RecentItemCounts: []int{10, 10, 10, 10, 10, 500, 500},
		Now:              now,
	})
	assert.Empty(t, r.Warnings)
}

func TestLooksLikeUnitData(t *testing.T) {
	assert.True(t, LooksLikeUnitData("סיכום ביקור\nדירה  14\nחשמל"))
	assert.True(t, LooksLikeUnitData("טבלת ליקויים"))
	assert.True(t, LooksLikeUnitData("סטטוס עבודות"))
	assert.False(t, LooksLikeUnitData("פרוטוקול ישיבת תיאום"))
	assert.False(t, LooksLikeUnitData("דירה ללא מספר"))
}
