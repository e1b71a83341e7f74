package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mixtape/internal/config"
)

// Store persists batch history.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open connects to the history database at cfg.HistoryPath(), creating it
// on first use.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartBatch inserts a running batch.
func (s *Store) StartBatch(ctx context.Context, b Batch) error {
	if b.ID == "" {
		return errors.New("batch id is required")
	}
	if b.StartedAt.IsZero() {
		b.StartedAt = time.Now()
	}
	err := s.exec(ctx,
		`INSERT INTO batches (id, status, output_name, track_count, requested, effective, started_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Status, b.OutputName, b.Tracks, b.Requested, b.Effective, formatTime(b.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// FinishBatch stores a batch's final counts and status.
func (s *Store) FinishBatch(ctx context.Context, b Batch) error {
	if b.FinishedAt.IsZero() {
		b.FinishedAt = time.Now()
	}
	err := s.exec(ctx,
		`UPDATE batches
         SET status = ?, effective = ?, done = ?, failed = ?, cancelled = ?, finished_at = ?
         WHERE id = ?`,
		b.Status, b.Effective, b.Done, b.Failed, b.Cancelled, formatTime(b.FinishedAt), b.ID,
	)
	if err != nil {
		return fmt.Errorf("finish batch: %w", err)
	}
	return nil
}

// RecordJob inserts or replaces a job row.
func (s *Store) RecordJob(ctx context.Context, j Job) error {
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = time.Now()
	}
	err := s.exec(ctx,
		`INSERT INTO jobs (batch_id, job_index, status, stage, fingerprint, image, output_path, diagnostic, note, elapsed_ms, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(batch_id, job_index) DO UPDATE SET
             status = excluded.status, stage = excluded.stage, fingerprint = excluded.fingerprint,
             image = excluded.image, output_path = excluded.output_path, diagnostic = excluded.diagnostic,
             note = excluded.note, elapsed_ms = excluded.elapsed_ms, updated_at = excluded.updated_at`,
		j.BatchID, j.Index, j.Status,
		nullableString(j.Stage), nullableString(j.Fingerprint), nullableString(j.Image),
		nullableString(j.OutputPath), nullableString(j.Diagnostic), nullableString(j.Note),
		j.Elapsed.Milliseconds(), formatTime(j.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("record job %d: %w", j.Index, err)
	}
	return nil
}

const batchColumns = "id, status, output_name, track_count, requested, effective, done, failed, cancelled, started_at, finished_at"

// ListBatches returns the most recent batches first. A non-positive limit
// returns every batch.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetBatch returns one batch, or nil when unknown. A unique id prefix is
// accepted.
func (s *Store) GetBatch(ctx context.Context, id string) (*Batch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id LIMIT 2`,
		id, escapeLike(id)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	defer rows.Close()

	var matches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if b.ID == id {
			return &b, nil
		}
		matches = append(matches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("batch id prefix %q is ambiguous", id)
	}
}

// Jobs lists a batch's jobs in index order.
func (s *Store) Jobs(ctx context.Context, batchID string) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_id, job_index, status, stage, fingerprint, image, output_path, diagnostic, note, elapsed_ms, updated_at
         FROM jobs WHERE batch_id = ? ORDER BY job_index`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var (
			j                                                   Job
			stage, fingerprint, image, output, diagnostic, note sql.NullString
			elapsedMS                                           int64
			updated                                             string
		)
		if err := rows.Scan(&j.BatchID, &j.Index, &j.Status, &stage, &fingerprint, &image, &output, &diagnostic, &note, &elapsedMS, &updated); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.Stage = stage.String
		j.Fingerprint = fingerprint.String
		j.Image = image.String
		j.OutputPath = output.String
		j.Diagnostic = diagnostic.String
		j.Note = note.String
		j.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		j.UpdatedAt, _ = parseTimeString(updated)
		out = append(out, j)
	}
	return out, rows.Err()
}

// Prune deletes batches started before cutoff along with their jobs.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE started_at < ?`, formatTime(cutoff))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return removed, nil
}

func scanBatch(scanner interface{ Scan(dest ...any) error }) (Batch, error) {
	var (
		b        Batch
		started  string
		finished sql.NullString
	)
	if err := scanner.Scan(&b.ID, &b.Status, &b.OutputName, &b.Tracks, &b.Requested, &b.Effective,
		&b.Done, &b.Failed, &b.Cancelled, &started, &finished); err != nil {
		return Batch{}, err
	}
	b.StartedAt, _ = parseTimeString(started)
	if finished.Valid {
		b.FinishedAt, _ = parseTimeString(finished.String)
	}
	return b, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout is fixed-width so stored timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(timeLayout, value)
}

func escapeLike(value string) string {
	r := strings.NewReplacer(`%`, `\%`, `_`, `\_`)
	return r.Replace(value)
}
