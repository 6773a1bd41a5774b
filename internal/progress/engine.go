package progress

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-tracker/constants"
)

// ItemRecord is one work item as stored on a report.
type ItemRecord struct {
	Category    string
	Description string
	Status      string
	Notes       string
}

// ReportHistory is one finalized report and its items.
type ReportHistory struct {
	ReportID  uuid.UUID
	FileName  string
	Date      time.Time
	CreatedAt time.Time
	HasErrors bool
	Items     []ItemRecord
}

// Counts describe the items of a single report, not the running history.
type Counts struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	Defects    int `json:"defects"`
	Resolved   int `json:"resolved"` // keys seen earlier but absent here
}

// ReportProgress is the cumulative state after folding one report.
type ReportProgress struct {
	ReportID       uuid.UUID      `json:"report_id"`
	FileName       string         `json:"file_name"`
	Date           time.Time      `json:"date"`
	HasErrors      bool           `json:"has_errors"`
	Overall        int            `json:"overall"`
	Delta          int            `json:"delta"`
	Categories     map[string]int `json:"categories"`
	CategoriesSeen []string       `json:"categories_seen"`
	Counts         Counts         `json:"counts"`
}

// Engine folds report history into a progress timeline. It is pure and safe
// for concurrent use.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

type itemKey struct {
	category    string
	description string
}

// Reconcile orders reports by (date, created_at, id) and computes the
// cumulative progress after each one. An item that disappears from a later
// report counts as fixed.
func (e *Engine) Reconcile(reports []ReportHistory) []ReportProgress {
	ordered := slices.Clone(reports)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ReportID.String() < b.ReportID.String()
	})

	history := map[itemKey]ItemRecord{}
	seen := map[string]struct{}{}
	out := make([]ReportProgress, 0, len(ordered))
	previous := 0

	for _, rep := range ordered {
		present := make(map[itemKey]struct{}, len(rep.Items))
		for _, it := range rep.Items {
			k := itemKey{it.Category, it.Description}
			history[k] = it
			present[k] = struct{}{}
			seen[it.Category] = struct{}{}
		}

		keys := make([]itemKey, 0, len(history))
		for k := range history {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].category != keys[j].category {
				return keys[i].category < keys[j].category
			}
			return keys[i].description < keys[j].description
		})

		sums := map[string]float64{}
		counts := map[string]int{}
		resolved := 0
		for _, k := range keys {
			value := e.cfg.Thresholds.ItemFixed
			if _, ok := present[k]; ok {
				rec := history[k]
				value = e.ItemProgress(rec.Status, rec.Notes)
			} else {
				resolved++
			}
			sums[k.category] += value
			counts[k.category]++
		}

		categoriesSeen := sortedKeys(seen)
		categories := make(map[string]int, len(categoriesSeen))
		weighted := 0.0
		for _, c := range categoriesSeen {
			p := 0.0
			if counts[c] > 0 {
				p = math.Round(sums[c] / float64(counts[c]))
			}
			categories[c] = int(p)
			weighted += e.cfg.weight(c) * p
		}
		overall := int(math.Round(clamp(weighted/100, e.cfg.Baseline, e.cfg.Max)))

		c := countItems(rep.Items)
		c.Resolved = resolved

		out = append(out, ReportProgress{
			ReportID:       rep.ReportID,
			FileName:       rep.FileName,
			Date:           rep.Date,
			HasErrors:      rep.HasErrors,
			Overall:        overall,
			Delta:          overall - previous,
			Categories:     categories,
			CategoriesSeen: categoriesSeen,
			Counts:         c,
		})
		previous = overall
	}
	return out
}

// ItemProgress is the completion percentage of a single item. Defects in
// the status or the notes override a positive status.
func (e *Engine) ItemProgress(status, notes string) float64 {
	t := e.cfg.Thresholds
	st := constants.WorkStatus(status)
	if st.IsNegative() || constants.HasNegativeNotes(notes) {
		return math.Max(0, t.Completed-e.cfg.DefectPenalty)
	}
	switch st {
	case constants.StatusCompleted:
		return t.Completed
	case constants.StatusCompletedOK:
		return t.CompletedOK
	case constants.StatusHandled:
		return t.Handled
	case constants.StatusInProgress:
		return t.InProgress
	case constants.StatusPending:
		return t.Pending
	case constants.StatusNotStarted:
		return t.NotStarted
	default:
		return t.InProgress
	}
}

func countItems(items []ItemRecord) Counts {
	c := Counts{Total: len(items)}
	for _, it := range items {
		st := constants.WorkStatus(it.Status)
		negativeNotes := constants.HasNegativeNotes(it.Notes)
		switch {
		case st.IsNegative() || negativeNotes:
			c.Defects++
		case st.IsPositive():
			c.Completed++
		default:
			c.InProgress++
		}
	}
	return c
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
