package validation

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/inspection-tracker/constants"
)

// TextSource turns a PDF into plain text.
type TextSource interface {
	Text(ctx context.Context, document []byte) (string, error)
}

var (
	unitHeader   = regexp.MustCompile(`דירה\s+\d+`)
	unitKeywords = []string{"ליקויים", "ביצוע", "סטטוס"}
)

// Heuristic looks at the raw text of a document to tell a genuinely empty
// report from one the providers failed to read.
type Heuristic struct {
	text   TextSource
	logger *slog.Logger
}

func NewHeuristic(text TextSource, logger *slog.Logger) *Heuristic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heuristic{text: text, logger: logger}
}

// HasUnitData reports whether the document looks like it has apartment
// sections. When the text cannot be read the answer is true.
func (h *Heuristic) HasUnitData(ctx context.Context, document []byte, mimeType string) bool {
	if h == nil || h.text == nil || mimeType != constants.MimePDF {
		return true
	}
	text, err := h.text.Text(ctx, document)
	if err != nil {
		h.logger.Warn("validation.heuristic.text_failed", "error", err)
		return true
	}
	return LooksLikeUnitData(text)
}

// LooksLikeUnitData applies the structural markers to extracted text.
func LooksLikeUnitData(text string) bool {
	if unitHeader.MatchString(text) {
		return true
	}
	for _, kw := range unitKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
