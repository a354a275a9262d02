// Package analyzer sends document chunks to the completion service, turns
// the replies into AnalysisRecords and merges them into one report.
package analyzer

import (
	"context"
	"time"

	"filing-analyzer/internal/llmservice"
	"filing-analyzer/internal/models"

	"github.com/rs/zerolog/log"
)

type Analyzer struct {
	completer llmservice.Completer
	prompt    string
	timeout   time.Duration
}

type Option func(*Analyzer)

// WithTimeout bounds each completion call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.timeout = d }
}

// WithPrompt replaces the default system instruction.
func WithPrompt(prompt string) Option {
	return func(a *Analyzer) { a.prompt = prompt }
}

func New(completer llmservice.Completer, opts ...Option) *Analyzer {
	a := &Analyzer{
		completer: completer,
		prompt:    models.AnalysisSystemPrompt,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeChunk runs one completion for the chunk. It never returns an error:
// call and parse failures are reported through the result's Outcome with an
// empty record, so callers can keep going with the remaining chunks.
func (a *Analyzer) AnalyzeChunk(ctx context.Context, chunk models.Chunk) models.ChunkResult {
	result := models.ChunkResult{
		Index:   chunk.Index,
		Outcome: models.OutcomeOK,
		Record:  models.NewAnalysisRecord(),
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := a.completer.Complete(ctx, a.prompt, chunk.Text)
	if err != nil {
		log.Error().Err(err).Int("chunk", chunk.Index).Msg("Error in completion call")
		result.Outcome = models.OutcomeCallFailed
		result.Reason = err.Error()
		return result
	}
	log.Debug().Int("chunk", chunk.Index).Str("raw", raw).Msg("Raw completion response")

	cleaned := CleanResponse(raw)
	record, err := ParseRecord(cleaned)
	if err != nil {
		log.Error().Err(err).Int("chunk", chunk.Index).Str("content", cleaned).Msg("Failed to parse JSON response")
		result.Outcome = models.OutcomeParseFailed
		result.Reason = err.Error()
		result.RawResponse = raw
		return result
	}

	result.Record = record
	return result
}
