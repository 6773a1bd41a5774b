package utils

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoPrefix   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	dottedEnd   = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{2}|\d{4})(?:\.pdf)?$`)
	dottedAny   = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4}|\d{2})`)
	isoAnywhere = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	dmyAny      = regexp.MustCompile(`(\d{1,2})[./](\d{1,2})[./](\d{4}|\d{2})`)
)

// ParseYMD parses a YYYY-MM-DD date at midnight UTC.
func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// FormatYMD formats t as YYYY-MM-DD.
func FormatYMD(t time.Time) string {
	return t.Format("2006-01-02")
}

// DateFromFilename reads a report date from a file name such as
// "2024-03-12 report.pdf" or "report 12.3.24.pdf".
func DateFromFilename(name string) (time.Time, bool) {
	base := strings.TrimSpace(filepath.Base(name))
	lower := strings.ToLower(base)

	if m := isoPrefix.FindStringSubmatch(base); m != nil {
		return civil(m[1], m[2], m[3], false)
	}
	if m := dottedEnd.FindStringSubmatch(lower); m != nil {
		return civil(m[3], m[2], m[1], true)
	}
	if m := dottedAny.FindStringSubmatch(lower); m != nil {
		return civil(m[3], m[2], m[1], true)
	}
	return time.Time{}, false
}

// ParseDate reads an inspection date cell such as "12.3.24" or "18/09/2023".
// Cells that only say the work is fine (תקין, קיימים) carry no date.
func ParseDate(text string) (time.Time, bool) {
	s := strings.TrimSpace(text)
	if s == "" || strings.Contains(s, "תקין") || strings.Contains(s, "קיימים") {
		return time.Time{}, false
	}
	if m := isoAnywhere.FindStringSubmatch(s); m != nil {
		return civil(m[1], m[2], m[3], false)
	}
	if m := dmyAny.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			y += 2000
		}
		return civil(strconv.Itoa(y), m[2], m[1], false)
	}
	return time.Time{}, false
}

// civil builds a UTC date and rejects impossible calendar days. With pivot,
// two-digit years below 50 are 20xx and the rest 19xx.
func civil(ys, ms, ds string, pivot bool) (time.Time, bool) {
	y, err1 := strconv.Atoi(ys)
	m, err2 := strconv.Atoi(ms)
	d, err3 := strconv.Atoi(ds)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if pivot && len(ys) == 2 {
		if y < 50 {
			y += 2000
		} else {
			y += 1900
		}
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}
