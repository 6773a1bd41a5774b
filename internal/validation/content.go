package validation

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joseph-ayodele/inspection-tracker/constants"
	"github.com/joseph-ayodele/inspection-tracker/internal/llm"
	"github.com/joseph-ayodele/inspection-tracker/internal/utils"
)

type Confidence string

const (
	ConfidenceInvalid Confidence = "invalid"
	ConfidenceLow     Confidence = "low"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceHigh    Confidence = "high"
)

const (
	recentWindow    = 5
	lowCountRatio   = 0.5
	lowConfWarnings = 3
)

// Input is everything the content checks look at.
type Input struct {
	Payload         *llm.ReportPayload
	FileName        string
	HasUnitData     bool
	KnownApartments []string
	// RecentItemCounts holds item counts of accepted reports, newest first.
	RecentItemCounts []int
	ExistingDates    []time.Time
	Now              time.Time
}

// Report is the outcome of ValidateContent. Errors block the report;
// warnings need confirmation.
type Report struct {
	Valid      bool
	Errors     []string
	Warnings   []string
	Confidence Confidence
	ReportDate time.Time // zero when no date could be determined
}

// ResolveReportDate reads the extracted report date. Dates that are not
// YYYY-MM-DD are tried in the D.M.YY and D/M/YYYY layouts, then the file
// name is used.
func ResolveReportDate(raw, fileName string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if d, err := utils.ParseYMD(raw); err == nil {
			return d, true
		}
		if d, ok := utils.ParseDate(raw); ok {
			return d, true
		}
	}
	return utils.DateFromFilename(fileName)
}

// ValidateContent checks an extracted payload for content problems.
func ValidateContent(in Input) Report {
	var r Report
	p := in.Payload
	if p == nil {
		p = &llm.ReportPayload{}
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// report date
	if d, ok := ResolveReportDate(p.ReportDate, in.FileName); ok {
		r.ReportDate = d
	} else if strings.TrimSpace(p.ReportDate) != "" {
		r.Errors = append(r.Errors, fmt.Sprintf("report date %q is not a recognizable date and the file name has none", p.ReportDate))
	} else {
		r.Errors = append(r.Errors, "report date missing and not found in file name")
	}

	// structure
	total := p.ItemCount()
	if total == 0 {
		if in.HasUnitData {
			r.Errors = append(r.Errors, "structure mismatch: the document has apartment sections but no work items were extracted")
		} else {
			r.Warnings = append(r.Warnings, "no work items found; likely a genuinely empty report")
		}
	}

	// items
	unknownCategories := map[string]struct{}{}
	unknownStatuses := map[string]struct{}{}
	unknownApartments := map[string]struct{}{}
	missingDescription, missingNumber := 0, 0

	checkItem := func(it llm.WorkItem) {
		if strings.TrimSpace(it.Description) == "" {
			missingDescription++
		}
		if _, ok := constants.NormalizeCategory(it.Category, it.Description); !ok {
			unknownCategories[strings.TrimSpace(it.Category)] = struct{}{}
		}
		if _, ok := constants.NormalizeStatus(it.Status, it.Notes); !ok {
			unknownStatuses[strings.TrimSpace(it.Status)] = struct{}{}
		}
	}

	for _, apt := range p.Apartments {
		num := strings.TrimSpace(apt.ApartmentNumber)
		switch {
		case num == "":
			missingNumber++
		case len(in.KnownApartments) > 0 && !slices.Contains(in.KnownApartments, num):
			unknownApartments[num] = struct{}{}
		}
		for _, it := range apt.WorkItems {
			checkItem(it)
		}
	}
	for _, it := range p.DevelopmentItems {
		checkItem(it)
	}

	for _, c := range sortedKeys(unknownCategories) {
		r.Warnings = append(r.Warnings, fmt.Sprintf("unrecognized category %q, defaulted to OTHER", c))
	}
	for _, s := range sortedKeys(unknownStatuses) {
		r.Warnings = append(r.Warnings, fmt.Sprintf("unrecognized status %q, defaulted to IN_PROGRESS", s))
	}
	for _, a := range sortedKeys(unknownApartments) {
		r.Warnings = append(r.Warnings, fmt.Sprintf("apartment %s is not part of the project", a))
	}
	if missingNumber > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d apartment entries without a number", missingNumber))
	}
	if missingDescription > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d work items without a description", missingDescription))
	}

	// history
	if total > 0 {
		if mean, ok := recentMean(in.RecentItemCounts); ok && float64(total) < lowCountRatio*mean {
			r.Warnings = append(r.Warnings, fmt.Sprintf("only %d work items, well below the recent average of %.0f", total, mean))
		}
	}
	if !r.ReportDate.IsZero() {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if r.ReportDate.After(today) {
			r.Warnings = append(r.Warnings, fmt.Sprintf("report date %s is in the future", utils.FormatYMD(r.ReportDate)))
		}
		for _, d := range in.ExistingDates {
			if sameDay(d, r.ReportDate) {
				r.Warnings = append(r.Warnings, fmt.Sprintf("another report is already dated %s", utils.FormatYMD(r.ReportDate)))
				break
			}
		}
	}

	r.Valid = len(r.Errors) == 0
	switch {
	case !r.Valid:
		r.Confidence = ConfidenceInvalid
	case len(r.Warnings) >= lowConfWarnings:
		r.Confidence = ConfidenceLow
	case len(r.Warnings) > 0:
		r.Confidence = ConfidenceMedium
	default:
		r.Confidence = ConfidenceHigh
	}
	return r
}

func recentMean(counts []int) (float64, bool) {
	if len(counts) > recentWindow {
		counts = counts[:recentWindow]
	}
	if len(counts) == 0 {
		return 0, false
	}
	sum := 0
	for _, c := range counts {
		sum += c
	}
	return float64(sum) / float64(len(counts)), true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
