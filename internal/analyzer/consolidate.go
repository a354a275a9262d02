package analyzer

import (
	"sort"
	"unicode/utf8"

	"filing-analyzer/internal/models"
)

// DefaultLimit caps each category of the consolidated report.
const DefaultLimit = 10

// Consolidate merges per-chunk records in chunk order. For every category it
// keeps the first occurrence of each distinct insight, orders them by length
// in characters (shorter first, ties in first-seen order) and keeps at most
// limit entries.
// A non-positive limit means DefaultLimit.
func Consolidate(records []models.AnalysisRecord, limit int) models.AnalysisRecord {
	if limit <= 0 {
		limit = DefaultLimit
	}

	out := models.NewAnalysisRecord()
	for _, key := range models.Fields {
		var all []string
		for _, r := range records {
			all = append(all, r.Field(key)...)
		}
		out.SetField(key, rank(dedupe(all), limit))
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func rank(values []string, limit int) []string {
	sort.SliceStable(values, func(i, j int) bool {
		return utf8.RuneCountInString(values[i]) < utf8.RuneCountInString(values[j])
	})
	if len(values) > limit {
		values = values[:limit]
	}
	return values
}
