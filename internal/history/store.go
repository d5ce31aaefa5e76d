package history

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// ErrNotFound is returned when no record matches a query.
var ErrNotFound = stderrors.New("history: no matching build")

// Store is the build ledger.
type Store interface {
	Record(ctx context.Context, r *BuildRecord) error
	LastSuccess(ctx context.Context) (*BuildRecord, error)
	Recent(ctx context.Context, n int) ([]*BuildRecord, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and creates) the ledger database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errors.HistoryError("create history directory").
				WithContext("path", dbPath).WithCause(err).Build()
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.HistoryError("open history database").
			WithContext("path", dbPath).WithCause(err).Build()
	}
	// Every pooled connection to ":memory:" would get its own empty database.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.HistoryError("initialize history schema").
			WithContext("path", dbPath).WithCause(err).Build()
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		signature TEXT NOT NULL,
		manifest_hash TEXT,
		record BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_status ON builds(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends a build record.
func (s *SQLiteStore) Record(ctx context.Context, r *BuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := r.ToJSON()
	if err != nil {
		return errors.HistoryError("encode build record").WithCause(err).Build()
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO builds (id, started_at, duration_ms, status, signature, manifest_hash, record) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.StartedAt.UnixMilli(), r.Duration, string(r.Status), r.Signature, r.ManifestHash, payload,
	)
	if err != nil {
		return errors.HistoryError("insert build record").
			WithContext("build_id", r.ID).WithCause(err).Build()
	}
	return nil
}

// LastSuccess returns the most recent successful build or ErrNotFound.
func (s *SQLiteStore) LastSuccess(ctx context.Context) (*BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT record FROM builds WHERE status = ? ORDER BY seq DESC LIMIT 1",
		string(StatusSuccess),
	).Scan(&payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.HistoryError("query last successful build").WithCause(err).Build()
	}
	return FromJSON(payload)
}

// Recent returns up to n records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]*BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT record FROM builds ORDER BY seq DESC LIMIT ?", n)
	if err != nil {
		return nil, errors.HistoryError("query builds").WithCause(err).Build()
	}
	defer func() { _ = rows.Close() }()

	var out []*BuildRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.HistoryError("scan build").WithCause(err).Build()
		}
		r, err := FromJSON(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.HistoryError("iterate builds").WithCause(err).Build()
	}
	return out, nil
}

// Prune deletes all but the newest keep records.
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM builds WHERE seq NOT IN (SELECT seq FROM builds ORDER BY seq DESC LIMIT ?)", keep)
	if err != nil {
		return 0, errors.HistoryError("prune builds").WithCause(err).Build()
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// NoopStore discards records. It is used when history is disabled.
type NoopStore struct{}

func (NoopStore) Record(context.Context, *BuildRecord) error { return nil }
func (NoopStore) LastSuccess(context.Context) (*BuildRecord, error) {
	return nil, ErrNotFound
}
func (NoopStore) Recent(context.Context, int) ([]*BuildRecord, error) { return nil, nil }
func (NoopStore) Close() error                                       { return nil }

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = NoopStore{}
)

