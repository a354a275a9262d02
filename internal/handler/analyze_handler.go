package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"filing-analyzer/internal/helper"
	"filing-analyzer/internal/models"
	"filing-analyzer/internal/parser"
	"filing-analyzer/internal/pipeline"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// FileAnalyzer analyzes a document stored at path.
type FileAnalyzer interface {
	AnalyzeFile(ctx context.Context, path, name string) (*pipeline.Result, error)
}

type AnalyzeHandler struct {
	analyzer       FileAnalyzer
	maxUploadBytes int64
}

func NewAnalyzeHandler(analyzer FileAnalyzer, maxUploadBytes int64) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: analyzer, maxUploadBytes: maxUploadBytes}
}

// NewRouter wires the routes and the CORS allow-list.
func NewRouter(h *AnalyzeHandler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.POST("/analyze", h.Analyze)
	r.GET("/health", h.Health)
	return r
}

// Analyze accepts a multipart upload in field "file" and returns the
// consolidated four-category report as JSON.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	requestID, err := helper.GenerateUUID()
	if err != nil {
		requestID = "unknown"
	}
	logger := log.With().Str("request_id", requestID).Logger()

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": "missing file upload"})
		return
	}

	ext := filepath.Ext(fh.Filename)
	if ext == "" {
		ext = ".pdf"
	}
	if !parser.Supported("upload" + ext) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"detail": "unsupported file type " + strconv.Quote(ext)})
		return
	}

	tmpPath, err := saveTemp(fh, requestID+"-*"+ext)
	if err != nil {
		logger.Error().Err(err).Msg("Error saving upload")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "could not store upload"})
		return
	}
	defer os.Remove(tmpPath)

	logger.Info().Str("file", fh.Filename).Int64("bytes", fh.Size).Msg("Received document")

	res, err := h.analyzer.AnalyzeFile(c.Request.Context(), tmpPath, fh.Filename)
	if err != nil {
		logger.Error().Err(err).Msg("Analysis failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	logger.Info().
		Int("chunks", res.ChunkCount).
		Int("failed_chunks", res.FailedChunks).
		Bool("cached", res.Cached).
		Msg("Analysis complete")

	c.Header("X-Request-ID", requestID)
	c.JSON(http.StatusOK, toResponse(res.Analysis))
}

func (h *AnalyzeHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// toResponse guarantees the four fields serialize as arrays.
func toResponse(r models.AnalysisRecord) models.AnalysisRecord {
	out := models.NewAnalysisRecord()
	for _, key := range models.Fields {
		if v := r.Field(key); v != nil {
			out.SetField(key, v)
		}
	}
	return out
}

// saveTemp copies the upload to a temporary file the caller must remove.
func saveTemp(fh *multipart.FileHeader, pattern string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}
