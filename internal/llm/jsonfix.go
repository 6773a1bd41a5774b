package llm

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON means the provider text contained no JSON object.
var ErrNoJSON = errors.New("no json object found")

var (
	reFenced        = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*?\\})\\s*```")
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// LocateJSON pulls the JSON object out of free text. A fenced ```json block
// wins; otherwise the span from the first '{' to the last '}' is used.
func LocateJSON(text string) (string, error) {
	if m := reFenced.FindStringSubmatch(text); m != nil {
		return m[1], nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// RepairJSON trims the text and removes trailing commas before a closing
// brace or bracket.
func RepairJSON(s string) string {
	return reTrailingComma.ReplaceAllString(strings.TrimSpace(s), "$1")
}
