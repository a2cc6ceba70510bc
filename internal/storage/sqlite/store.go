// Package sqlite provides a SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nordlys/bugsight/pkg/models"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	filename       TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL,
	overall_score  INTEGER NOT NULL,
	critical_count INTEGER NOT NULL,
	warning_count  INTEGER NOT NULL,
	insight_count  INTEGER NOT NULL,
	result         BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// Store is a SQLite-backed store for analysis runs. Results are kept as
// JSON blobs; the summary columns exist so listing never deserializes
// full results.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path. ":memory:" keeps it in RAM.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) PutRun(ctx context.Context, summary models.RunSummary, result *models.AnalysisResult) error {
	blob, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, filename, created_at, overall_score, critical_count, warning_count, insight_count, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			created_at = excluded.created_at,
			overall_score = excluded.overall_score,
			critical_count = excluded.critical_count,
			warning_count = excluded.warning_count,
			insight_count = excluded.insight_count,
			result = excluded.result`,
		summary.ID, summary.Filename, summary.CreatedAt.UTC(),
		summary.OverallScore, summary.CriticalCount, summary.WarningCount, summary.InsightCount,
		blob)
	if err != nil {
		return fmt.Errorf("storing run %s: %w", summary.ID, err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*models.AnalysisResult, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT result FROM runs WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}

	var res models.AnalysisResult
	if err := json.Unmarshal(blob, &res); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", id, err)
	}
	return &res, nil
}

func (s *Store) ListRuns(ctx context.Context) ([]models.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, created_at, overall_score, critical_count, warning_count, insight_count
		FROM runs ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunSummary
	for rows.Next() {
		var sum models.RunSummary
		var created time.Time
		if err := rows.Scan(&sum.ID, &sum.Filename, &created,
			&sum.OverallScore, &sum.CriticalCount, &sum.WarningCount, &sum.InsightCount); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		sum.CreatedAt = created
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
