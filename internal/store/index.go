package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// indexTimeLayout is fixed-width so timestamps sort as text.
const indexTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Index is a SQLite mirror of run records for filtered listings. The
// filesystem store stays the source of truth; Rebuild restores the index
// from it.
type Index struct {
	db *sql.DB
}

// IndexFilter narrows List results. Zero values mean no restriction.
type IndexFilter struct {
	Outcome Outcome
	Problem string
	Limit   int
}

// OpenIndex opens or creates the index database at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			problem TEXT NOT NULL,
			outcome TEXT NOT NULL,
			status TEXT NOT NULL,
			iterations INTEGER NOT NULL,
			best_objective REAL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS runs_outcome ON runs(outcome);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create index schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Upsert inserts or replaces the row for record.
func (idx *Index) Upsert(record *RunRecord) error {
	return upsertRun(idx.db, record)
}

func upsertRun(db execer, record *RunRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	_, err := db.Exec(
		`INSERT INTO runs (run_id, problem, outcome, status, iterations, best_objective, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			problem = excluded.problem,
			outcome = excluded.outcome,
			status = excluded.status,
			iterations = excluded.iterations,
			best_objective = excluded.best_objective,
			start_time = excluded.start_time,
			end_time = excluded.end_time`,
		record.RunID,
		record.Problem,
		string(record.Outcome),
		record.Status,
		record.Iterations,
		record.BestObjective,
		record.StartTime.UTC().Format(indexTimeLayout),
		record.EndTime.UTC().Format(indexTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert run %s: %w", record.RunID, err)
	}
	return nil
}

// Delete removes the row for runID. Deleting a missing row is not an error.
func (idx *Index) Delete(runID string) error {
	if _, err := idx.db.Exec("DELETE FROM runs WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	return nil
}

// List returns matching runs, newest first.
func (idx *Index) List(filter IndexFilter) ([]RunInfo, error) {
	query := "SELECT run_id, problem, outcome, status, iterations, best_objective, end_time FROM runs WHERE 1=1"
	var args []any
	if filter.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, string(filter.Outcome))
	}
	if filter.Problem != "" {
		query += " AND problem = ?"
		args = append(args, filter.Problem)
	}
	query += " ORDER BY start_time DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	infos := []RunInfo{}
	for rows.Next() {
		var (
			info    RunInfo
			outcome string
			best    sql.NullFloat64
			endTime string
		)
		if err := rows.Scan(&info.RunID, &info.Problem, &outcome, &info.Status, &info.Iterations, &best, &endTime); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		info.Outcome = Outcome(outcome)
		if best.Valid {
			v := best.Float64
			info.BestObjective = &v
		}
		if info.EndTime, err = time.Parse(indexTimeLayout, endTime); err != nil {
			return nil, fmt.Errorf("failed to parse end time of run %s: %w", info.RunID, err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Rebuild replaces the index contents with the records in s and returns
// how many rows were written. It runs in one transaction, so a failure
// leaves the previous contents in place.
func (idx *Index) Rebuild(s Store) (int, error) {
	records, err := s.ListRuns()
	if err != nil {
		return 0, fmt.Errorf("failed to list runs: %w", err)
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM runs"); err != nil {
		return 0, fmt.Errorf("failed to clear index: %w", err)
	}
	for _, record := range records {
		if err := upsertRun(tx, record); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rebuild: %w", err)
	}
	return len(records), nil
}
