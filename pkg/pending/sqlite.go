package pending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/offline-agent/internal/sqlitemigrate"
	"github.com/Sternrassler/offline-agent/pkg/pending/migrations"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLiteStore persists pending records in a SQLite file.
// The database is opened and migrated on first use; later opens are no-ops.
type SQLiteStore struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore returns a store backed by the file at path.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Open opens the database and applies pending schema migrations.
// Calling Open more than once is safe.
func (s *SQLiteStore) Open(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

func (s *SQLiteStore) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	if strings.TrimSpace(s.path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(s.path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; the queue is small and strictly sequential
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	applied, err := sqlitemigrate.Apply(ctx, db, migrations.FS, "")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if len(applied) > 0 {
		log.Info().
			Str("path", s.path).
			Strs("migrations", applied).
			Msg("Pending store schema migrated")
	}

	s.db = db
	return db, nil
}

// Close closes the database handle if it was opened.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Enqueue adds rec to the queue.
func (s *SQLiteStore) Enqueue(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if !validPayload(rec.Payload) {
		return Record{}, ErrInvalidPayload
	}

	rec.Key = strings.TrimSpace(rec.Key)
	if rec.Key == "" {
		rec.Key = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	db, err := s.conn(ctx)
	if err != nil {
		return Record{}, err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO pending_records (key, payload, created_at) VALUES (?, ?, ?)`,
		rec.Key, []byte(rec.Payload), rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Record{}, fmt.Errorf("%w: %s", ErrDuplicateKey, rec.Key)
		}
		return Record{}, fmt.Errorf("insert pending record: %w", err)
	}

	enqueuedTotal.Inc()
	recordsGauge.Inc()
	rec.CreatedAt = time.UnixMilli(rec.CreatedAt.UnixMilli()).UTC()
	return rec, nil
}

// All returns every queued record in enqueue order.
func (s *SQLiteStore) All(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT key, payload, created_at FROM pending_records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query pending records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec       Record
			payload   []byte
			createdAt int64
		)
		if err := rows.Scan(&rec.Key, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending record: %w", err)
		}
		rec.Payload = payload
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending records: %w", err)
	}

	recordsGauge.Set(float64(len(records)))
	return records, nil
}

// Delete removes the record with key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM pending_records WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete pending record %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		recordsGauge.Sub(float64(n))
	}
	return nil
}

// Count returns the number of queued records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending records: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ Store = (*SQLiteStore)(nil)
