package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"intake/internal/classify"
	"intake/internal/queue"
)

// Store persists historical upload records in SQLite. Reads are safe for
// concurrent use; writes serialize across processes through a lock file
// next to the database.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open initializes or connects to the history database and applies
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
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

	store := &Store{
		db:   db,
		path: path,
		lock: flock.New(path + ".lock"),
	}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// LookupByFingerprints returns all upload records for the given
// fingerprints within a scope, keyed by fingerprint. Duplicate input
// fingerprints are tolerated; unknown fingerprints are simply absent from
// the result.
func (s *Store) LookupByFingerprints(ctx context.Context, fingerprints []string, scope string) (map[string][]classify.Record, error) {
	distinct := dedupe(fingerprints)
	if len(distinct) == 0 {
		return map[string][]classify.Record{}, nil
	}

	args := make([]any, 0, len(distinct)+1)
	for _, fp := range distinct {
		args = append(args, fp)
	}
	args = append(args, normalizeScope(scope))

	query := fmt.Sprintf(
		`SELECT fingerprint, uploader, uploaded_at, size_bytes, last_modified_at, basename
         FROM uploads
         WHERE fingerprint IN (%s) AND scope = ?
         ORDER BY uploaded_at DESC`,
		makePlaceholders(len(distinct)),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make(map[string][]classify.Record)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[record.Fingerprint] = append(out[record.Fingerprint], record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return out, nil
}

// RecordUploads inserts one row per record under the given scope. The
// batch is applied in a single transaction behind the write lock.
func (s *Store) RecordUploads(ctx context.Context, records []classify.Record, scope string) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire history lock: %w", err)
	}
	defer func() {
		_ = s.lock.Unlock()
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upload tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	scope = normalizeScope(scope)
	for _, record := range records {
		if strings.TrimSpace(record.Fingerprint) == "" {
			return fmt.Errorf("record upload: empty fingerprint")
		}
		uploadedAt := record.UploadedAt
		if uploadedAt.IsZero() {
			uploadedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO uploads (
                fingerprint, uploader, uploaded_at, size_bytes, last_modified_at, basename, scope
            ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.Fingerprint,
			record.Uploader,
			uploadedAt.UTC().Format(time.RFC3339Nano),
			record.Metadata.SizeBytes,
			record.Metadata.LastModifiedAt.UTC().Format(time.RFC3339Nano),
			record.Metadata.Basename,
			scope,
		)
		if err != nil {
			return fmt.Errorf("insert upload %s: %w", record.Fingerprint, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit uploads: %w", err)
	}
	return nil
}

// List returns the most recent records in a scope, newest first. A limit
// of zero or less returns everything.
func (s *Store) List(ctx context.Context, scope string, limit int) ([]classify.Record, error) {
	query := `SELECT fingerprint, uploader, uploaded_at, size_bytes, last_modified_at, basename
              FROM uploads WHERE scope = ? ORDER BY uploaded_at DESC, id DESC`
	args := []any{normalizeScope(scope)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []classify.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return out, nil
}

// Prune removes records uploaded before the cutoff in a scope and reports
// how many rows went away.
func (s *Store) Prune(ctx context.Context, scope string, olderThan time.Time) (int64, error) {
	if err := s.lock.Lock(); err != nil {
		return 0, fmt.Errorf("acquire history lock: %w", err)
	}
	defer func() {
		_ = s.lock.Unlock()
	}()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM uploads WHERE scope = ? AND uploaded_at < ?",
		normalizeScope(scope),
		olderThan.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune uploads: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return removed, nil
}

func scanRecord(rows *sql.Rows) (classify.Record, error) {
	var (
		record       classify.Record
		uploadedAt   string
		lastModified string
	)
	if err := rows.Scan(
		&record.Fingerprint,
		&record.Uploader,
		&uploadedAt,
		&record.Metadata.SizeBytes,
		&lastModified,
		&record.Metadata.Basename,
	); err != nil {
		return classify.Record{}, fmt.Errorf("scan upload: %w", err)
	}

	parsedUploaded, err := time.Parse(time.RFC3339Nano, uploadedAt)
	if err != nil {
		return classify.Record{}, fmt.Errorf("parse uploaded_at %q: %w", uploadedAt, err)
	}
	parsedModified, err := time.Parse(time.RFC3339Nano, lastModified)
	if err != nil {
		return classify.Record{}, fmt.Errorf("parse last_modified_at %q: %w", lastModified, err)
	}
	record.UploadedAt = parsedUploaded
	record.Metadata.LastModifiedAt = parsedModified
	return record, nil
}

// RecordFromItem builds a history record for an item that was uploaded.
func RecordFromItem(item queue.Item, uploader string, uploadedAt time.Time) classify.Record {
	return classify.Record{
		Fingerprint: item.Fingerprint,
		Uploader:    uploader,
		UploadedAt:  uploadedAt,
		Metadata:    item.Metadata(),
	}
}

func normalizeScope(scope string) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return "default"
	}
	return scope
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}
