package constants

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// WorkStatus is the canonical status stored on work items.
type WorkStatus string

// Stable values (store these exact strings in DB).
const (
	StatusCompleted   WorkStatus = "COMPLETED"
	StatusCompletedOK WorkStatus = "COMPLETED_OK"
	StatusNotOK       WorkStatus = "NOT_OK"
	StatusDefect      WorkStatus = "DEFECT"
	StatusInProgress  WorkStatus = "IN_PROGRESS"
	StatusHandled     WorkStatus = "HANDLED"
	StatusPending     WorkStatus = "PENDING"
	StatusNotStarted  WorkStatus = "NOT_STARTED"
)

var allStatuses = []WorkStatus{
	StatusCompleted, StatusCompletedOK, StatusNotOK, StatusDefect,
	StatusInProgress, StatusHandled, StatusPending, StatusNotStarted,
}

// IsStatus reports whether s is a canonical status code.
func IsStatus(s string) bool {
	for _, st := range allStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

// IsPositive is true for statuses that mean the work is done.
func (s WorkStatus) IsPositive() bool {
	return s == StatusCompleted || s == StatusCompletedOK || s == StatusHandled
}

// IsNegative is true for statuses that flag a problem.
func (s WorkStatus) IsNegative() bool {
	return s == StatusNotOK || s == StatusDefect
}

var statusLabels = map[string]WorkStatus{
	"בוצע":                    StatusCompleted,
	"בוצע - תקין":             StatusCompletedOK,
	"תקין":                    StatusCompletedOK,
	"לא תקין":                 StatusNotOK,
	"ליקוי":                   StatusDefect,
	"בטיפול":                  StatusInProgress,
	"טופל":                    StatusHandled,
	"ממתין":                   StatusPending,
	"לא התחיל":                StatusNotStarted,
	"בביצוע":                  StatusInProgress,
	"הושלם":                   StatusCompleted,
	"נמצא ליקוי":              StatusDefect,
	"תוקן":                    StatusHandled,
	"קיימים אי תאומים":        StatusDefect,
	"קיימים אי תיאומים":       StatusDefect,
	"אי תאומים":               StatusDefect,
	"אי תיאומים":              StatusDefect,
	"יש הערות":                StatusDefect,
	"בוצע - יש הערות":         StatusDefect,
	"בוצע - יש ליקויים":       StatusDefect,
	"בוצע - נמצאו אי תאומים":  StatusDefect,
	"בוצע - נמצאו אי תיאומים": StatusDefect,
	"נמצאו אי תאומים":         StatusDefect,
	"נמצאו אי תיאומים":        StatusDefect,
	"בוצע עם הערות":           StatusDefect,
	"בוצע חלקי":               StatusInProgress,
	"לטיפול":                  StatusPending,
	"נדרש מעקב":               StatusPending,
	"נדרש ביצוע":              StatusPending,
}

// defectKeywords flag a problem wherever they appear in a status or its notes.
var defectKeywords = []string{
	"אי תיאומים", "אי תאומים", "נמצאו אי", "קיימים אי",
	"יש הערות", "יש ליקויים", "ליקוי", "ליקויים",
	"לא תקין", "חסר", "חסרה", "חסרות", "חסרים",
	"שבור", "שבורה", "שבורים", "סדוק", "סדוקה", "סדוקים",
	"פגם", "פגמים", "בעיה", "בעיות", "לתקן", "תיקון",
	"לא בוצע", "לא הותקן", "לא הותקנו", "חתוך", "חתוכים",
	"להחליף", "החלפה", "נזק", "נזקים", "לא הושלם", "טעון",
}

var partialKeywords = []string{"חלקי", "חלקית", "בביצוע", "בטיפול"}

// labels sorted longest first so the most specific phrase wins the contains pass.
var statusLabelsByLength = func() []string {
	keys := make([]string, 0, len(statusLabels))
	for k := range statusLabels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(keys[i]), utf8.RuneCountInString(keys[j])
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// HasNegativeNotes reports whether text contains any defect keyword.
func HasNegativeNotes(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range defectKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// NormalizeStatus maps a free-text status (plus its notes) to a canonical
// status. Defect keywords anywhere in status or notes override everything
// else. The second return value is false when the status text was not
// recognized and the default was used.
func NormalizeStatus(status, notes string) (WorkStatus, bool) {
	s := strings.TrimSpace(status)
	if HasNegativeNotes(s + " " + notes) {
		return StatusDefect, true
	}
	if s == "" {
		return StatusInProgress, false
	}
	if IsStatus(strings.ToUpper(s)) {
		return WorkStatus(strings.ToUpper(s)), true
	}
	for _, kw := range partialKeywords {
		if strings.Contains(s, kw) {
			return StatusInProgress, true
		}
	}
	if st, ok := statusLabels[s]; ok {
		return st, true
	}
	for _, k := range statusLabelsByLength {
		if strings.Contains(s, k) {
			return statusLabels[k], true
		}
	}
	return StatusInProgress, false
}
