package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Gobusters/ectologger"
	_ "modernc.org/sqlite"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// SQLite persists one JSON snapshot row per kind in a local database file so
// the cache survives restarts.
type SQLite struct {
	db     *sql.DB
	path   string
	logger ectologger.Logger
	now    func() time.Time
}

var _ Store = (*SQLite)(nil)

func NewSQLite(ctx context.Context, path string, logger ectologger.Logger) (*SQLite, error) {
	if path == "" {
		path = "fern-cache.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serialises writers on the file
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS snapshots (
		kind TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		record_count INTEGER NOT NULL,
		saved_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS pending_sync (
		kind TEXT PRIMARY KEY,
		marked_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create pending_sync table: %w", err)
	}

	logger.WithContext(ctx).Infof("Opened cache snapshot database at %s", path)
	return &SQLite{db: db, path: path, logger: logger, now: time.Now}, nil
}

func (s *SQLite) Read(ctx context.Context, kind models.Kind) (set models.RecordSet, ok bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "SQLiteCache.Read")
	defer span.End()
	defer func() { observe(DriverSQLite, "read", err) }()

	var payload []byte
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE kind = ?`, string(kind)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RecordSet{}, false, nil
	}
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("failed to read %s snapshot", kind)
		return models.RecordSet{}, false, fmt.Errorf("read %s snapshot: %w", kind, err)
	}

	if err = json.Unmarshal(payload, &set); err != nil {
		return models.RecordSet{}, false, fmt.Errorf("decode %s snapshot: %w", kind, err)
	}
	return set, true, nil
}

func (s *SQLite) Write(ctx context.Context, set models.RecordSet) (err error) {
	ctx, span := tracing.StartSpan(ctx, "SQLiteCache.Write")
	defer span.End()
	defer func() { observe(DriverSQLite, "write", err) }()

	if err = validate(set); err != nil {
		return err
	}
	if set.Records == nil {
		set.Records = []models.Record{}
	}
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", set.Kind, err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO snapshots(kind, payload, record_count, saved_at) VALUES(?,?,?,?)
		ON CONFLICT(kind) DO UPDATE SET payload=excluded.payload, record_count=excluded.record_count, saved_at=excluded.saved_at`,
		string(set.Kind), payload, set.Len(), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("failed to write %s snapshot", set.Kind)
		return fmt.Errorf("upsert %s snapshot: %w", set.Kind, err)
	}

	s.logger.WithContext(ctx).Debugf("Cached %d %s records", set.Len(), set.Kind)
	return nil
}

func (s *SQLite) SetPending(ctx context.Context, kind models.Kind, pending bool) (err error) {
	ctx, span := tracing.StartSpan(ctx, "SQLiteCache.SetPending")
	defer span.End()
	defer func() { observe(DriverSQLite, "set_pending", err) }()

	if pending {
		_, err = s.db.ExecContext(ctx, `INSERT INTO pending_sync(kind, marked_at) VALUES(?,?)
			ON CONFLICT(kind) DO NOTHING`, string(kind), s.now().UTC().Format(time.RFC3339Nano))
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM pending_sync WHERE kind = ?`, string(kind))
	}
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("failed to update %s pending mark", kind)
		return fmt.Errorf("update %s pending mark: %w", kind, err)
	}
	return nil
}

func (s *SQLite) Pending(ctx context.Context, kind models.Kind) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM pending_sync WHERE kind = ?`, string(kind)).Scan(&count); err != nil {
		return false, fmt.Errorf("read %s pending mark: %w", kind, err)
	}
	return count > 0, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the configured database path.
func (s *SQLite) Path() string { return s.path }
