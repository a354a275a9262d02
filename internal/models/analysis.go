package models

// AnalysisRecord is the four-category insight report produced per chunk and
// for the whole document.
type AnalysisRecord struct {
	KeyFinancialMetrics  []string `json:"key_financial_metrics"`
	RisksAndChallenges   []string `json:"risks_and_challenges"`
	StrategicInitiatives []string `json:"strategic_initiatives"`
	SignificantChanges   []string `json:"significant_changes"`
}

// NewAnalysisRecord returns a record whose four fields are empty, non-nil slices.
func NewAnalysisRecord() AnalysisRecord {
	return AnalysisRecord{
		KeyFinancialMetrics:  []string{},
		RisksAndChallenges:   []string{},
		StrategicInitiatives: []string{},
		SignificantChanges:   []string{},
	}
}

// Field returns the values stored under one of the category keys.
func (r AnalysisRecord) Field(key string) []string {
	switch key {
	case FieldKeyFinancialMetrics:
		return r.KeyFinancialMetrics
	case FieldRisksAndChallenges:
		return r.RisksAndChallenges
	case FieldStrategicInitiatives:
		return r.StrategicInitiatives
	case FieldSignificantChanges:
		return r.SignificantChanges
	}
	return nil
}

// SetField replaces the values stored under a category key. Unknown keys are ignored.
func (r *AnalysisRecord) SetField(key string, values []string) {
	if values == nil {
		values = []string{}
	}
	switch key {
	case FieldKeyFinancialMetrics:
		r.KeyFinancialMetrics = values
	case FieldRisksAndChallenges:
		r.RisksAndChallenges = values
	case FieldStrategicInitiatives:
		r.StrategicInitiatives = values
	case FieldSignificantChanges:
		r.SignificantChanges = values
	}
}

// Len is the total number of insights across all categories.
func (r AnalysisRecord) Len() int {
	n := 0
	for _, key := range Fields {
		n += len(r.Field(key))
	}
	return n
}

// Chunk is a contiguous slice of normalized document text sent as one unit
// to the completion service.
type Chunk struct {
	Index  int
	Text   string
	Tokens int
}

// ChunkOutcome tags how the analysis of one chunk ended.
type ChunkOutcome string

const (
	OutcomeOK          ChunkOutcome = "ok"
	OutcomeCallFailed  ChunkOutcome = "call_failed"
	OutcomeParseFailed ChunkOutcome = "parse_failed"
)

// ChunkResult is the tagged result of analyzing one chunk. Record is always
// well-shaped; on failure it is empty and the diagnostics sit in Reason and
// RawResponse.
type ChunkResult struct {
	Index       int
	Outcome     ChunkOutcome
	Record      AnalysisRecord
	Reason      string
	RawResponse string
}

func (r ChunkResult) Failed() bool {
	return r.Outcome != OutcomeOK
}
