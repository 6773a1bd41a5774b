package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// DecodePayload turns raw provider text into a report payload: locate the
// JSON object, repair it, sanitize it, validate its shape and unmarshal it.
// The sanitized JSON is returned for auditing.
func DecodePayload(text string, logger *slog.Logger) (*ReportPayload, []byte, error) {
	clean, err := prepare(text, logger)
	if err != nil {
		return nil, nil, err
	}
	var out ReportPayload
	if err := json.Unmarshal(clean, &out); err != nil {
		return nil, clean, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &out, clean, nil
}

// DecodeApartmentList reads the answer to the apartment list prompt.
func DecodeApartmentList(text string) ([]string, error) {
	located, err := LocateJSON(text)
	if err != nil {
		return nil, err
	}
	return NormalizeApartmentList([]byte(RepairJSON(located)))
}

func prepare(text string, logger *slog.Logger) ([]byte, error) {
	located, err := LocateJSON(text)
	if err != nil {
		return nil, err
	}
	clean, _, err := NormalizePayloadJSON([]byte(RepairJSON(located)), logger)
	if err != nil {
		return nil, err
	}
	if err := ValidateReportJSON(clean); err != nil {
		return nil, err
	}
	return clean, nil
}
