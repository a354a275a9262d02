package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"filing-analyzer/internal/models"
	"filing-analyzer/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
)

type fakeAnalyzer struct {
	result  *pipeline.Result
	err     error
	path    string
	name    string
	content string
}

func (f *fakeAnalyzer) AnalyzeFile(ctx context.Context, path, name string) (*pipeline.Result, error) {
	f.path = path
	f.name = name
	data, _ := os.ReadFile(path)
	f.content = string(data)
	return f.result, f.err
}

func newTestRouter(a FileAnalyzer, maxBytes int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewAnalyzeHandler(a, maxBytes), []string{"http://localhost:3000"})
}

func uploadRequest(t *testing.T, field, filename, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(body))
	mw.Close()

	req := httptest.NewRequest("POST", "/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAnalyze_Success(t *testing.T) {
	rec := models.NewAnalysisRecord()
	rec.RisksAndChallenges = []string{"Debt increased."}
	fa := &fakeAnalyzer{result: &pipeline.Result{Analysis: rec, ChunkCount: 2}}
	r := newTestRouter(fa, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "file", "acme-10k.pdf", "%PDF-1.7 fake"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acme-10k.pdf", fa.name)
	assert.Equal(t, "%PDF-1.7 fake", fa.content)
	assert.NotEqual(t, "", w.Header().Get("X-Request-ID"))

	var body map[string][]string
	json.Unmarshal(w.Body.Bytes(), &body)
	assert.Equal(t, 4, len(body))
	assert.Equal(t, []string{"Debt increased."}, body["risks_and_challenges"])
	assert.Equal(t, []string{}, body["key_financial_metrics"])

	_, err := os.Stat(fa.path)
	assert.Equal(t, true, os.IsNotExist(err))
}

func TestAnalyze_NilFieldsSerializeAsArrays(t *testing.T) {
	fa := &fakeAnalyzer{result: &pipeline.Result{}}
	r := newTestRouter(fa, 0)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "file", "empty.pdf", "x"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"key_financial_metrics":[],"risks_and_challenges":[],"strategic_initiatives":[],"significant_changes":[]}`, w.Body.String())
}

func TestAnalyze_ExtractionFailure(t *testing.T) {
	fa := &fakeAnalyzer{err: errors.Join(pipeline.ErrExtraction, errors.New("malformed PDF"))}
	r := newTestRouter(fa, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "file", "broken.pdf", "garbage"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	assert.NotEqual(t, "", body["detail"])

	_, err := os.Stat(fa.path)
	assert.Equal(t, true, os.IsNotExist(err))
}

func TestAnalyze_MissingFile(t *testing.T) {
	r := newTestRouter(&fakeAnalyzer{}, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "document", "a.pdf", "x"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyze_FileTooLarge(t *testing.T) {
	fa := &fakeAnalyzer{}
	r := newTestRouter(fa, 512)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "file", "10k.pdf", strings.Repeat("x", 4096)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	assert.Equal(t, "file too large", body["detail"])
	assert.Equal(t, "", fa.path)
}

func TestAnalyze_UnsupportedType(t *testing.T) {
	fa := &fakeAnalyzer{}
	r := newTestRouter(fa, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "file", "deck.pptx", "x"))

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "", fa.path)
}

func TestAnalyze_NoExtensionTreatedAsPDF(t *testing.T) {
	fa := &fakeAnalyzer{result: &pipeline.Result{Analysis: models.NewAnalysisRecord()}}
	r := newTestRouter(fa, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "file", "filing", "x"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ".pdf", fa.path[len(fa.path)-4:])
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&fakeAnalyzer{}, 0)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS_AllowedOrigin(t *testing.T) {
	r := newTestRouter(&fakeAnalyzer{}, 0)

	req := httptest.NewRequest("OPTIONS", "/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
