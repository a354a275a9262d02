package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"filing-analyzer/internal/analyzer"
	"filing-analyzer/internal/config"
	"filing-analyzer/internal/db"
	"filing-analyzer/internal/handler"
	"filing-analyzer/internal/helper"
	"filing-analyzer/internal/llmservice"
	"filing-analyzer/internal/parser"
	"filing-analyzer/internal/pipeline"
	"filing-analyzer/internal/report"
	"filing-analyzer/internal/tokenizer"
)

const (
	configFilePath  = "./configs/config.yaml"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to the filing to analyze")
	serve := flag.Bool("serve", false, "Run the HTTP API")
	format := flag.String("format", "json", "Output format for -file: json, markdown or html")
	outPath := flag.String("out", "", "Write the report to this file instead of stdout")
	noCache := flag.Bool("no-cache", false, "Do not read or write stored reports")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	setupLogger(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	if *filePath != "" && *serve {
		log.Fatal().Msg("Please provide either a document file using the -file flag or -serve, but not both")
	}
	if *filePath == "" && !*serve {
		log.Fatal().Msg("Please provide a document file using the -file flag or run the API with -serve")
	}
	switch *format {
	case "json", "markdown", "md", "html":
	default:
		log.Fatal().Str("format", *format).Msg("Unknown output format")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, closeStore := buildPipeline(ctx, cfg, !*noCache)
	defer closeStore()

	if *serve {
		runServer(ctx, cfg, p)
		return
	}

	if err := analyzeFile(ctx, p, *filePath, *format, *outPath); err != nil {
		log.Error().Err(err).Msg("Analysis failed")
		closeStore()
		os.Exit(1)
	}
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

// buildPipeline creates the long-lived collaborators once per process.
func buildPipeline(ctx context.Context, cfg *config.Config, useCache bool) (*pipeline.Pipeline, func()) {
	client, err := llmservice.NewClient(&cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing completion client")
	}

	counter := tokenizer.New(cfg.Analyzer.Tokenizer, cfg.Analyzer.TokenizerModel)

	opts := []pipeline.Option{
		pipeline.WithMaxTokens(cfg.Analyzer.MaxTokens),
		pipeline.WithMaxInsights(cfg.Analyzer.MaxInsights),
		pipeline.WithConcurrency(cfg.Analyzer.Concurrency),
		pipeline.WithRequestsPerMinute(cfg.Analyzer.RequestsPerMinute),
		pipeline.WithModel(cfg.LLM.Model),
	}

	closeStore := func() {}
	if useCache && cfg.Database.Enabled() {
		store, err := db.Open(ctx, &cfg.Database)
		if err != nil {
			log.Warn().Err(err).Msg("Report store unavailable, continuing without it")
		} else {
			opts = append(opts, pipeline.WithStore(store))
			closeStore = func() {
				if err := store.Close(); err != nil {
					log.Warn().Err(err).Msg("Error closing report store")
				}
			}
		}
	}

	a := analyzer.New(client, analyzer.WithTimeout(cfg.LLM.Timeout))
	return pipeline.New(parser.Default, counter, a, opts...), closeStore
}

func runServer(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) {
	gin.SetMode(gin.ReleaseMode)
	h := handler.NewAnalyzeHandler(p, cfg.Server.MaxUploadMB<<20)
	router := handler.NewRouter(h, cfg.Server.AllowedOrigins)

	log.Info().Strs("origins", cfg.Server.AllowedOrigins).Str("addr", cfg.Server.Addr).Msg("Starting server")

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down server")
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Error starting server")
	}
}

func analyzeFile(ctx context.Context, p *pipeline.Pipeline, path, format, outPath string) error {
	res, err := p.AnalyzeFile(ctx, path, filepath.Base(path))
	if err != nil {
		return err
	}
	log.Info().
		Int("chunks", res.ChunkCount).
		Int("failed_chunks", res.FailedChunks).
		Bool("cached", res.Cached).
		Msg("Analysis complete")

	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch format {
	case "json":
		return helper.PrettyPrint(w, res.Analysis)
	case "markdown", "md":
		_, err := io.WriteString(w, report.Markdown(res.Analysis, title))
		return err
	case "html":
		out, err := report.HTML(res.Analysis, title)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
