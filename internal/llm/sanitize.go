package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
)

var (
	metadataFields  = []string{"reportDate", "inspector", "projectName"}
	workItemStrings = []string{"category", "location", "description", "status", "notes"}
	progressStrings = []string{"apartmentNumber", "category", "inspectionDate", "status"}
)

// NormalizePayloadJSON
// - Lifts reportMetadata fields and apartmentsData to the top level
// - Coerces numeric apartment numbers and text fields to strings
// - Coerces hasPhoto to a boolean
// - Drops nulls, non-object entries and unknown keys
func NormalizePayloadJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)

	// 1) lift wrappers used by the chunked prompts
	if meta, ok := m["reportMetadata"].(map[string]any); ok {
		for _, k := range metadataFields {
			if _, exists := m[k]; !exists {
				if v, ok := meta[k]; ok {
					m[k] = v
				}
			}
		}
		delete(m, "reportMetadata")
	}
	if data, ok := m["apartmentsData"]; ok {
		if _, exists := m["apartments"]; !exists {
			m["apartments"] = data
		}
		delete(m, "apartmentsData")
	}

	// 2) top-level text fields
	for _, k := range metadataFields {
		v, ok := m[k]
		if !ok {
			continue
		}
		if s, ok := coerceString(v); ok && s != "" {
			m[k] = s
		} else {
			delete(m, k)
			dropped = append(dropped, k)
		}
	}

	// 3) collections
	if v, ok := m["apartments"]; ok {
		m["apartments"] = normalizeApartments(v, &dropped)
	}
	if v, ok := m["developmentItems"]; ok {
		m["developmentItems"] = normalizeWorkItems(v, "developmentItems", &dropped)
	}
	if v, ok := m["progressTracking"]; ok {
		m["progressTracking"] = normalizeObjects(v, "progressTracking", progressStrings, false, &dropped)
	}

	// 4) remove unknown keys
	allowed := map[string]struct{}{
		"reportDate": {}, "inspector": {}, "projectName": {},
		"apartments": {}, "developmentItems": {}, "progressTracking": {},
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	if len(dropped) > 0 {
		logger.Debug("llm.sanitize.dropped", "fields", dropped)
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, fmt.Errorf("sanitize: encode: %w", err)
	}
	return b, dropped, nil
}

func normalizeApartments(v any, dropped *[]string) []any {
	arr, ok := v.([]any)
	if !ok {
		*dropped = append(*dropped, "apartments(type)")
		return []any{}
	}
	out := make([]any, 0, len(arr))
	for _, el := range arr {
		apt, ok := el.(map[string]any)
		if !ok {
			*dropped = append(*dropped, "apartments[](type)")
			continue
		}
		num, _ := coerceString(apt["apartmentNumber"])
		clean := map[string]any{
			"apartmentNumber": num,
			"workItems":       normalizeWorkItems(apt["workItems"], "workItems", dropped),
		}
		if dates, ok := apt["inspectionDates"].(map[string]any); ok {
			kept := map[string]any{}
			for k, dv := range dates {
				if s, ok := dv.(string); ok && strings.TrimSpace(s) != "" {
					kept[k] = strings.TrimSpace(s)
				} else {
					*dropped = append(*dropped, "inspectionDates."+k)
				}
			}
			clean["inspectionDates"] = kept
		}
		out = append(out, clean)
	}
	return out
}

func normalizeWorkItems(v any, field string, dropped *[]string) []any {
	return normalizeObjects(v, field, workItemStrings, true, dropped)
}

// normalizeObjects keeps object entries and coerces the named fields to strings.
func normalizeObjects(v any, field string, stringFields []string, withPhoto bool, dropped *[]string) []any {
	if v == nil {
		return []any{}
	}
	arr, ok := v.([]any)
	if !ok {
		*dropped = append(*dropped, field+"(type)")
		return []any{}
	}
	out := make([]any, 0, len(arr))
	for _, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			*dropped = append(*dropped, field+"[](type)")
			continue
		}
		clean := map[string]any{}
		for _, k := range stringFields {
			if s, ok := coerceString(obj[k]); ok {
				clean[k] = s
			}
		}
		if hp, ok := obj["hasPhoto"]; ok && withPhoto {
			clean["hasPhoto"] = coerceBool(hp)
		}
		out = append(out, clean)
	}
	return out
}

func coerceString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if strings.EqualFold(s, "null") {
			return "", false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "כן", "v", "✓":
			return true
		}
	}
	return false
}

// NormalizeApartmentList reads {"apartments": [...]} where entries may be
// numbers, strings or objects with apartmentNumber. Order is kept and
// duplicates are removed.
func NormalizeApartmentList(raw []byte) ([]string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("apartment list: decode: %w", err)
	}
	arr, ok := m["apartments"].([]any)
	if !ok {
		return nil, fmt.Errorf("apartment list: missing apartments array")
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(arr))
	for _, el := range arr {
		if obj, ok := el.(map[string]any); ok {
			el = obj["apartmentNumber"]
		}
		s, ok := coerceString(el)
		if !ok || s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
