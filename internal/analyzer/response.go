package analyzer

import (
	"encoding/json"
	"errors"
	"strings"

	"filing-analyzer/internal/models"
)

var ErrNotObject = errors.New("response is not a JSON object")

// CleanResponse removes one leading "```json" and one trailing "```" fence
// marker, then trims whitespace. Other fence styles are left alone.
func CleanResponse(raw string) string {
	cleaned := strings.TrimPrefix(raw, models.JSONFenceOpen)
	cleaned = strings.TrimSuffix(cleaned, models.JSONFenceClose)
	return strings.TrimSpace(cleaned)
}

// ParseRecord decodes a JSON object into an AnalysisRecord. Missing
// categories default to empty and unknown keys are ignored; only malformed
// JSON or a non-object top level is an error.
func ParseRecord(text string) (models.AnalysisRecord, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return models.NewAnalysisRecord(), err
	}
	if obj == nil {
		return models.NewAnalysisRecord(), ErrNotObject
	}

	record := models.NewAnalysisRecord()
	for _, key := range models.Fields {
		if raw, ok := obj[key]; ok {
			record.SetField(key, decodeInsights(raw))
		}
	}
	return record, nil
}

// decodeInsights accepts a list of strings, skipping non-string items, or a
// single string. Anything else yields no insights.
func decodeInsights(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err == nil && single != "" {
			return []string{single}
		}
		return []string{}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(string(item)) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}
