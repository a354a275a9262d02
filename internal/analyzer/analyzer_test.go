package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"filing-analyzer/internal/models"

	"github.com/go-playground/assert/v2"
)

type fakeCompleter struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.system = system
	f.user = user
	return f.reply, f.err
}

type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestAnalyzeChunk_FencedJSON(t *testing.T) {
	fc := &fakeCompleter{reply: "```json\n{\"key_financial_metrics\": [\"Revenue grew 10%.\"]}\n```"}
	a := New(fc)

	res := a.AnalyzeChunk(context.Background(), models.Chunk{Index: 2, Text: "Revenue grew 10%. "})

	assert.Equal(t, models.OutcomeOK, res.Outcome)
	assert.Equal(t, false, res.Failed())
	assert.Equal(t, 2, res.Index)
	assert.Equal(t, []string{"Revenue grew 10%."}, res.Record.KeyFinancialMetrics)
	assert.Equal(t, []string{}, res.Record.RisksAndChallenges)
	assert.Equal(t, []string{}, res.Record.StrategicInitiatives)
	assert.Equal(t, []string{}, res.Record.SignificantChanges)

	assert.Equal(t, models.AnalysisSystemPrompt, fc.system)
	assert.Equal(t, "Revenue grew 10%. ", fc.user)
}

func TestAnalyzeChunk_NonJSON(t *testing.T) {
	fc := &fakeCompleter{reply: "I could not find anything material."}
	a := New(fc)

	res := a.AnalyzeChunk(context.Background(), models.Chunk{Text: "x"})

	assert.Equal(t, models.OutcomeParseFailed, res.Outcome)
	assert.Equal(t, true, res.Failed())
	assert.Equal(t, models.NewAnalysisRecord(), res.Record)
	assert.Equal(t, "I could not find anything material.", res.RawResponse)
	assert.NotEqual(t, "", res.Reason)
}

func TestAnalyzeChunk_RawResponseIsUnstripped(t *testing.T) {
	raw := "```json\n{not json}\n```"
	a := New(&fakeCompleter{reply: raw})

	res := a.AnalyzeChunk(context.Background(), models.Chunk{Text: "x"})

	assert.Equal(t, models.OutcomeParseFailed, res.Outcome)
	assert.Equal(t, raw, res.RawResponse)
}

func TestAnalyzeChunk_CallFailure(t *testing.T) {
	a := New(&fakeCompleter{err: errors.New("401 unauthorized")})

	res := a.AnalyzeChunk(context.Background(), models.Chunk{Text: "x"})

	assert.Equal(t, models.OutcomeCallFailed, res.Outcome)
	assert.Equal(t, "401 unauthorized", res.Reason)
	assert.Equal(t, "", res.RawResponse)
	assert.Equal(t, models.NewAnalysisRecord(), res.Record)
}

func TestAnalyzeChunk_Timeout(t *testing.T) {
	a := New(blockingCompleter{}, WithTimeout(20*time.Millisecond))

	res := a.AnalyzeChunk(context.Background(), models.Chunk{Text: "x"})

	assert.Equal(t, models.OutcomeCallFailed, res.Outcome)
	assert.Equal(t, context.DeadlineExceeded.Error(), res.Reason)
}

func TestAnalyzeChunk_CustomPrompt(t *testing.T) {
	fc := &fakeCompleter{reply: "{}"}
	a := New(fc, WithPrompt("be brief"))

	a.AnalyzeChunk(context.Background(), models.Chunk{Text: "x"})

	assert.Equal(t, "be brief", fc.system)
}
