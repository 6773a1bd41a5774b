package constants

import (
	"strings"
)

type Category string

const (
	Electrical    Category = "ELECTRICAL"
	Plumbing      Category = "PLUMBING"
	AC            Category = "AC"
	Flooring      Category = "FLOORING"
	Sprinklers    Category = "SPRINKLERS"
	Drywall       Category = "DRYWALL"
	Waterproofing Category = "WATERPROOFING"
	Painting      Category = "PAINTING"
	Kitchen       Category = "KITCHEN"
	Other         Category = "OTHER"
)

var allCategories = []Category{
	Electrical,
	Plumbing,
	AC,
	Flooring,
	Sprinklers,
	Drywall,
	Waterproofing,
	Painting,
	Kitchen,
	Other,
}

func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// IsCategory reports whether s is one of the canonical category codes.
func IsCategory(s string) bool {
	for _, c := range allCategories {
		if string(c) == s {
			return true
		}
	}
	return false
}

type labelEntry struct {
	label    string
	category Category
}

// Report labels as they appear in the inspection documents. Order matters for
// the contains pass: earlier entries win.
var categoryLabels = []labelEntry{
	{"חשמל", Electrical},
	{"אינסטלציה", Plumbing},
	{"מיזוג", AC},
	{"מיזוג אויר", AC},
	{`מ"א`, AC},
	{"ריצוף", Flooring},
	{"חיפוי", Flooring},
	{"ספרינקלרים", Sprinklers},
	{"ספרינקלר", Sprinklers},
	{"כיבוי", Sprinklers},
	{"כיבוי אש", Sprinklers},
	{"גבס", Drywall},
	{"הנמכות", Drywall},
	{"הנמכה", Drywall},
	{"איטום", Waterproofing},
	{"צביעה", Painting},
	{"צבע", Painting},
	{"מטבח", Kitchen},
	{"חלונות", Other},
	{"דלת כניסה", Other},
	{"כללי", Other},
	{"סניטריה", Other},
	{"פיתוח", Other},
	{"עבודות פיתוח", Other},
	{"אחר", Other},
}

type keywordGroup struct {
	category Category
	keywords []string
}

// Description keywords, consulted only when the label resolved to OTHER.
var descriptionKeywords = []keywordGroup{
	{Electrical, []string{"חשמל", "שקע", "מפסק", "תאורה", "לוח", "כבל", "חוטים"}},
	{AC, []string{`מ"א`, "מיזוג", "מזגן", "דמפר", "תריס", "VRF", "vrf", "צנרת גז"}},
	{Sprinklers, []string{"ספרינקלר", "מתז", "כיבוי אש", "גלאי", "ספרינקלרים"}},
	{Drywall, []string{"גבס", "הנמכות", "הנמכה", "קרניז", "נישה", "תקרה אקוסטית"}},
	{Flooring, []string{"ריצוף", "חיפוי", "פוגה", "רובה", "שיפועים", "קרמיקה", "פורצלן", "פרקט", "פנלים"}},
	{Plumbing, []string{"אינסטלציה", "צנרת", "ביוב", "דלוחין", "נקז", "סיפון", "ברז", "אסלה", "כיור", "מקלחת", "אמבטיה"}},
	{Waterproofing, []string{"איטום", "יריעות", "פריימר", "זפת", "רולקות", "סף הפרדה"}},
	{Painting, []string{"צבע", "צביעה", "סיוד", "תיקוני שפכטל", "צביעת קירות", "צביעת תקרה"}},
	{Kitchen, []string{"מטבח", "ארונות", "שיש", "כיור מטבח"}},
}

// NormalizeCategory maps a report label to a canonical category. When the
// label alone resolves to OTHER, the item description is scanned for trade
// keywords. The second return value is false when neither the label nor the
// description was recognized.
func NormalizeCategory(label, description string) (Category, bool) {
	cat, known := lookupLabel(label)
	if cat != Other {
		return cat, true
	}
	if description != "" {
		for _, g := range descriptionKeywords {
			for _, kw := range g.keywords {
				if strings.Contains(description, kw) {
					return g.category, true
				}
			}
		}
	}
	return Other, known
}

func lookupLabel(label string) (Category, bool) {
	s := strings.TrimSpace(label)
	if s == "" {
		return Other, false
	}
	if IsCategory(strings.ToUpper(s)) {
		return Category(strings.ToUpper(s)), true
	}
	for _, e := range categoryLabels {
		if s == e.label {
			return e.category, true
		}
	}
	for _, e := range categoryLabels {
		if strings.Contains(s, e.label) {
			return e.category, true
		}
	}
	return Other, false
}
