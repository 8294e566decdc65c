// Package history keeps a local SQLite log of completed scans so repeated
// preflight runs against the same share can be compared.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"spo-preflight/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when no run has the requested ID
var ErrNotFound = errors.New("scan run not found")

// Run is one recorded scan
type Run struct {
	ID              string         `json:"id"`
	Root            string         `json:"root"`
	ReportPath      string         `json:"reportPath"`
	StartedAt       time.Time      `json:"startedAt"`
	DurationSecs    float64        `json:"durationSeconds"`
	ItemsScanned    int64          `json:"itemsScanned"`
	IssuesFound     int64          `json:"issuesFound"`
	IssuesByType    map[string]int `json:"issuesByType"`
	ReportFinalized bool           `json:"reportFinalized"`
	Cancelled       bool           `json:"cancelled"`
	ExitCode        int            `json:"exitCode"`
	ErrorMessage    string         `json:"error,omitempty"`
}

// NewRun fills a Run from a scan result
func NewRun(result *models.ScanResult, started time.Time, byType map[string]int, exitCode int) *Run {
	return &Run{
		Root:            result.Root,
		ReportPath:      result.ReportPath,
		StartedAt:       started,
		DurationSecs:    result.Duration.Seconds(),
		ItemsScanned:    result.ItemsScanned,
		IssuesFound:     result.IssuesFound,
		IssuesByType:    byType,
		ReportFinalized: result.ReportFinalized,
		Cancelled:       result.Cancelled,
		ExitCode:        exitCode,
		ErrorMessage:    result.Error,
	}
}

// Store manages the SQLite database of scan runs
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if needed) the database at dbPath
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry retries "database is locked" failures with exponential
// backoff
func execWithRetry(db *sql.DB, query string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(query)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts run, assigning an ID when it has none
func (s *Store) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	byType := "{}"
	if len(run.IssuesByType) > 0 {
		data, err := json.Marshal(run.IssuesByType)
		if err != nil {
			return fmt.Errorf("marshal issues by type: %w", err)
		}
		byType = string(data)
	}

	query := `INSERT INTO scan_runs
		(id, root, report_path, started_at, duration_seconds, items_scanned, issues_found, issues_by_type, report_finalized, cancelled, exit_code, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Root,
		run.ReportPath,
		run.StartedAt.UTC(),
		run.DurationSecs,
		run.ItemsScanned,
		run.IssuesFound,
		byType,
		run.ReportFinalized,
		run.Cancelled,
		run.ExitCode,
		run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}
	return nil
}

const selectRun = `SELECT id, root, report_path, started_at, duration_seconds, items_scanned, issues_found, issues_by_type, report_finalized, cancelled, exit_code, error_message
	FROM scan_runs`

// List returns the most recent runs first. root filters by scan root when
// not empty; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, root string, limit int) ([]*Run, error) {
	query := selectRun
	var args []any
	if root != "" {
		query += ` WHERE root = ?`
		args = append(args, root)
	}
	query += ` ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scan runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan runs: %w", err)
	}
	return runs, nil
}

// Get returns the run with the given ID
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run    Run
		byType string
	)
	err := row.Scan(
		&run.ID,
		&run.Root,
		&run.ReportPath,
		&run.StartedAt,
		&run.DurationSecs,
		&run.ItemsScanned,
		&run.IssuesFound,
		&byType,
		&run.ReportFinalized,
		&run.Cancelled,
		&run.ExitCode,
		&run.ErrorMessage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan run row: %w", err)
	}

	run.IssuesByType = map[string]int{}
	if byType != "" {
		if err := json.Unmarshal([]byte(byType), &run.IssuesByType); err != nil {
			return nil, fmt.Errorf("unmarshal issues by type: %w", err)
		}
	}
	return &run, nil
}
