package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"filing-analyzer/internal/config"
	"filing-analyzer/internal/models"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

var ErrNotFound = errors.New("report not found")

// Report is a consolidated analysis keyed by the SHA-256 of the source document.
type Report struct {
	bun.BaseModel `bun:"table:reports,alias:r"`
	ID            int64                 `bun:"id,pk,autoincrement"`
	DocumentHash  string                `bun:"document_hash,notnull,unique"`
	Filename      string                `bun:"filename"`
	Model         string                `bun:"model"`
	ChunkCount    int                   `bun:"chunk_count"`
	FailedChunks  int                   `bun:"failed_chunks"`
	Analysis      models.AnalysisRecord `bun:"analysis,type:jsonb,notnull"`
	CreatedAt     time.Time             `bun:"created_at,notnull,default:current_timestamp"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with bun's pgdriver or, with driver
// "postgres", through lib/pq.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "postgres":
		return sql.Open("postgres", cfg.URL)
	case "pgdriver", "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.URL)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := createTableQuery(db).Exec(ctx)
	return err
}

func createTableQuery(db bun.IDB) *bun.CreateTableQuery {
	return db.NewCreateTable().Model((*Report)(nil)).IfNotExists()
}

// ReportStore persists consolidated reports so the same filing is analyzed once.
type ReportStore struct {
	db *bun.DB
}

func NewReportStore(db *bun.DB) *ReportStore {
	return &ReportStore{db: db}
}

// Open connects, creates the reports table if needed and returns the store.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*ReportStore, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	db := NewDB(sqldb, cfg.Debug)
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}
	return NewReportStore(db), nil
}

func (s *ReportStore) Close() error {
	return s.db.Close()
}

// FindReport returns ErrNotFound when no report exists for hash.
func (s *ReportStore) FindReport(ctx context.Context, hash string) (*Report, error) {
	report := new(Report)
	if err := findQuery(s.db, report, hash).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return report, nil
}

// SaveReport inserts the report, replacing an earlier one for the same document.
func (s *ReportStore) SaveReport(ctx context.Context, report *Report) error {
	_, err := saveQuery(s.db, report).Exec(ctx)
	return err
}

func findQuery(db bun.IDB, report *Report, hash string) *bun.SelectQuery {
	return db.NewSelect().
		Model(report).
		Where("document_hash = ?", hash).
		Limit(1)
}

func saveQuery(db bun.IDB, report *Report) *bun.InsertQuery {
	return db.NewInsert().
		Model(report).
		On("CONFLICT (document_hash) DO UPDATE").
		Set("filename = EXCLUDED.filename").
		Set("model = EXCLUDED.model").
		Set("chunk_count = EXCLUDED.chunk_count").
		Set("failed_chunks = EXCLUDED.failed_chunks").
		Set("analysis = EXCLUDED.analysis").
		Set("created_at = EXCLUDED.created_at")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
