// Package history keeps an optional journal of monitor runs in SQLite.
// Nothing in the collect-filter-report pipeline reads from it; it exists
// for auditing what a run produced and when.
package history

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/umputun/newswatch/pkg/domain"
)

//go:embed schema.sql
var schema string

// Journal records runs and their matched rows
type Journal struct {
	conn *sqlx.DB
}

// Run is a stored run record
type Run struct {
	ID           int64     `db:"id"`
	StartedAt    time.Time `db:"started_at"`
	FinishedAt   time.Time `db:"finished_at"`
	ItemsFetched int       `db:"items_fetched"`
	ItemsMatched int       `db:"items_matched"`
	FeedsFailed  int       `db:"feeds_failed"`
}

// Entry is a stored match record
type Entry struct {
	ID      int64  `db:"id"`
	RunID   int64  `db:"run_id"`
	Source  string `db:"source"`
	Title   string `db:"title"`
	URL     string `db:"url"`
	Keyword string `db:"keyword"`
}

// New opens (or creates) the journal at the given DSN
func New(dsn string) (*Journal, error) {
	if dsn == "" {
		return nil, fmt.Errorf("history dsn is empty")
	}

	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	j := &Journal{conn: conn}
	if err := j.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return j, nil
}

// initSchema creates the journal schema
func (j *Journal) initSchema(ctx context.Context) error {
	if _, err := j.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the journal connection
func (j *Journal) Close() error {
	return j.conn.Close()
}

// SaveRun stores a run with its matched rows and returns the run ID
func (j *Journal) SaveRun(ctx context.Context, stats domain.RunStats, matches []domain.Match) (int64, error) {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	var runID int64
	err := retrier.Do(ctx, func() error {
		tx, err := j.conn.BeginTxx(ctx, nil)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("begin transaction: %w", err)}
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx,
			`INSERT INTO runs (started_at, finished_at, items_fetched, items_matched, feeds_failed)
			 VALUES (?, ?, ?, ?, ?)`,
			stats.StartedAt, stats.FinishedAt, stats.ItemsFetched, stats.ItemsMatched, stats.FeedsFailed)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("insert run: %w", err)}
		}

		runID, err = res.LastInsertId()
		if err != nil {
			return &criticalError{err: fmt.Errorf("run id: %w", err)}
		}

		for _, m := range matches {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO entries (run_id, source, title, url, keyword) VALUES (?, ?, ?, ?, ?)`,
				runID, string(m.Item.Source), m.Item.Title, m.Item.URL, m.Keyword)
			if err != nil {
				if isLockError(err) {
					return err // retry
				}
				return &criticalError{err: fmt.Errorf("insert entry for %s: %w", m.Item.URL, err)}
			}
		}

		if err := tx.Commit(); err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("commit run: %w", err)}
		}
		return nil
	}, errCritical)
	if err != nil {
		return 0, err
	}
	return runID, nil
}

// RecentRuns returns the latest runs, newest first
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []Run
	err := j.conn.SelectContext(ctx, &runs,
		`SELECT id, started_at, finished_at, items_fetched, items_matched, feeds_failed
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	return runs, nil
}

// Entries returns the matched rows of a run in insertion order
func (j *Journal) Entries(ctx context.Context, runID int64) ([]Entry, error) {
	var entries []Entry
	err := j.conn.SelectContext(ctx, &entries,
		`SELECT id, run_id, source, title, url, keyword FROM entries WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("select entries for run %d: %w", runID, err)
	}
	return entries, nil
}

// errCritical is the terminal marker passed to retrier.Do; errors wrapped
// in criticalError match it and stop the retry loop
var errCritical = errors.New("critical error")

// criticalError wraps an error to signal repeater to stop retrying
type criticalError struct {
	err error
}

func (e *criticalError) Error() string {
	return e.err.Error()
}

func (e *criticalError) Unwrap() error {
	return e.err
}

func (e *criticalError) Is(target error) bool {
	return target == errCritical
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}
