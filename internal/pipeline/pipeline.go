// Package pipeline runs a document through extraction, chunking, per-chunk
// analysis and consolidation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filing-analyzer/internal/analyzer"
	"filing-analyzer/internal/chunker"
	"filing-analyzer/internal/db"
	"filing-analyzer/internal/helper"
	"filing-analyzer/internal/models"
	"filing-analyzer/internal/parser"
	"filing-analyzer/internal/tokenizer"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrExtraction marks a failure to get text out of the document. It aborts
// the whole analysis.
var ErrExtraction = errors.New("text extraction failed")

const defaultMaxTokens = 8000

// ChunkAnalyzer analyzes one chunk; failures are reported in the result.
type ChunkAnalyzer interface {
	AnalyzeChunk(ctx context.Context, chunk models.Chunk) models.ChunkResult
}

// ReportStore caches consolidated reports by document hash.
type ReportStore interface {
	FindReport(ctx context.Context, hash string) (*db.Report, error)
	SaveReport(ctx context.Context, report *db.Report) error
}

// Result is the consolidated analysis of one document.
type Result struct {
	Analysis     models.AnalysisRecord
	Chunks       []models.ChunkResult
	ChunkCount   int
	FailedChunks int
	DocumentHash string
	Cached       bool
}

type Pipeline struct {
	extractor   parser.Extractor
	counter     tokenizer.Counter
	analyzer    ChunkAnalyzer
	store       ReportStore
	limiter     *rate.Limiter
	maxTokens   int
	maxInsights int
	concurrency int
	model       string
}

type Option func(*Pipeline)

// WithMaxTokens sets the per-chunk token budget.
func WithMaxTokens(n int) Option {
	return func(p *Pipeline) { p.maxTokens = n }
}

// WithMaxInsights caps each category of the final report.
func WithMaxInsights(n int) Option {
	return func(p *Pipeline) { p.maxInsights = n }
}

// WithConcurrency sets how many chunks are analyzed at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// WithRequestsPerMinute throttles completion calls. Zero means unlimited.
func WithRequestsPerMinute(rpm int) Option {
	return func(p *Pipeline) {
		if rpm <= 0 {
			p.limiter = nil
			return
		}
		p.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
	}
}

// WithStore enables the report cache.
func WithStore(store ReportStore) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithModel records the completion model name on stored reports.
func WithModel(model string) Option {
	return func(p *Pipeline) { p.model = model }
}

func New(extractor parser.Extractor, counter tokenizer.Counter, chunkAnalyzer ChunkAnalyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   extractor,
		counter:     counter,
		analyzer:    chunkAnalyzer,
		maxTokens:   defaultMaxTokens,
		maxInsights: analyzer.DefaultLimit,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// AnalyzeFile extracts the document at path and analyzes it. name is the
// original file name, used for logs and stored reports.
func (p *Pipeline) AnalyzeFile(ctx context.Context, path, name string) (*Result, error) {
	log.Info().Str("file", name).Msg("Starting analysis")

	var hash string
	if p.store != nil {
		h, err := helper.HashFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
		}
		hash = h
		if cached := p.lookup(ctx, hash); cached != nil {
			return cached, nil
		}
	}

	text, err := p.extractor.ExtractText(path)
	if err != nil {
		log.Error().Err(err).Str("file", name).Msg("Error extracting text")
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	res := p.AnalyzeText(ctx, text)
	res.DocumentHash = hash

	if p.store != nil {
		p.save(ctx, name, res)
	}
	return res, nil
}

// AnalyzeText runs normalization, chunking, chunk analysis and
// consolidation over already extracted text.
func (p *Pipeline) AnalyzeText(ctx context.Context, text string) *Result {
	chunks := chunker.Split(chunker.Normalize(text), p.maxTokens, p.counter)
	log.Info().Int("chunks", len(chunks)).Msgf("Split document into %d chunks", len(chunks))

	results := p.analyzeChunks(ctx, chunks)

	records := make([]models.AnalysisRecord, len(results))
	failed := 0
	for i, r := range results {
		records[i] = r.Record
		if r.Failed() {
			failed++
			log.Warn().Int("chunk", r.Index).Str("outcome", string(r.Outcome)).Str("reason", r.Reason).Msg("Chunk contributed no insights")
		}
	}

	final := analyzer.Consolidate(records, p.maxInsights)
	log.Info().Int("insights", final.Len()).Int("failed_chunks", failed).Msg("Consolidated chunk analyses")

	return &Result{
		Analysis:     final,
		Chunks:       results,
		ChunkCount:   len(chunks),
		FailedChunks: failed,
	}
}

// analyzeChunks fans chunks out to at most p.concurrency workers and
// returns the results in chunk order.
func (p *Pipeline) analyzeChunks(ctx context.Context, chunks []models.Chunk) []models.ChunkResult {
	results := make([]models.ChunkResult, len(chunks))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					results[i] = models.ChunkResult{
						Index:   chunk.Index,
						Outcome: models.OutcomeCallFailed,
						Record:  models.NewAnalysisRecord(),
						Reason:  err.Error(),
					}
					return nil
				}
			}
			log.Info().Int("tokens", chunk.Tokens).Msgf("Analyzing chunk %d/%d", i+1, len(chunks))
			results[i] = p.analyzer.AnalyzeChunk(ctx, chunk)
			return nil
		})
	}
	// workers never return errors; failures live in the results
	_ = g.Wait()

	return results
}

func (p *Pipeline) lookup(ctx context.Context, hash string) *Result {
	report, err := p.store.FindReport(ctx, hash)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.Warn().Err(err).Str("hash", hash).Msg("Report lookup failed")
		}
		return nil
	}
	if report.Model != p.model {
		log.Info().Str("hash", hash).Str("stored_model", report.Model).Str("model", p.model).Msg("Stored report is from another model, analyzing again")
		return nil
	}
	log.Info().Str("hash", hash).Msg("Returning stored report")
	return &Result{
		// the stored report may predate a lower max_insights
		Analysis:     analyzer.Consolidate([]models.AnalysisRecord{report.Analysis}, p.maxInsights),
		ChunkCount:   report.ChunkCount,
		FailedChunks: report.FailedChunks,
		DocumentHash: hash,
		Cached:       true,
	}
}

func (p *Pipeline) save(ctx context.Context, name string, res *Result) {
	// a report with failed chunks is incomplete; let the next upload retry
	if res.FailedChunks > 0 {
		return
	}
	err := p.store.SaveReport(ctx, &db.Report{
		DocumentHash: res.DocumentHash,
		Filename:     name,
		Model:        p.model,
		ChunkCount:   res.ChunkCount,
		FailedChunks: res.FailedChunks,
		Analysis:     res.Analysis,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("hash", res.DocumentHash).Msg("Failed to store report")
	}
}
