package models

const (
	FieldKeyFinancialMetrics  = "key_financial_metrics"
	FieldRisksAndChallenges   = "risks_and_challenges"
	FieldStrategicInitiatives = "strategic_initiatives"
	FieldSignificantChanges   = "significant_changes"

	SentenceDelimiter = ". "
	JSONFenceOpen     = "```json"
	JSONFenceClose    = "```"
)

// Fields lists the report categories in output order.
var Fields = []string{
	FieldKeyFinancialMetrics,
	FieldRisksAndChallenges,
	FieldStrategicInitiatives,
	FieldSignificantChanges,
}

var (
	AnalysisSystemPrompt = `You are a concise financial analyst expert. Analyze the following 10-K filing excerpt and provide the MOST critical insights in pure JSON format (do not wrap in markdown code blocks). Use this exact structure:
{
    "key_financial_metrics": [],
    "risks_and_challenges": [],
    "strategic_initiatives": [],
    "significant_changes": []
}

Be extremely selective and concise. Each array should contain only 3-5 of the MOST important points as strings. Focus on high-level, material insights that would be most relevant to investors. Each point should be a single sentence. Do not include any markdown formatting or code blocks in your response.`
)
