package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const DefaultPollInterval = 200 * time.Millisecond

// SQLiteDB is a store persisted in a sqlite database. It survives restarts
// and can be shared between processes. Watchers poll the version of their
// key since sqlite has no change notifications across connections.
type SQLiteDB struct {
	db           *sql.DB
	pollInterval time.Duration
}

func OpenSQLite(dbPath string, pollInterval time.Duration) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	s := &SQLiteDB{db: db, pollInterval: pollInterval}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate store %s: %w", dbPath, err)
	}
	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB,
		origin TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Handle(origin string) Store {
	return &SQLite{SQLiteDB: s, origin: origin}
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// SQLite is a handle on a SQLiteDB writing under one origin.
type SQLite struct {
	*SQLiteDB
	origin string
}

func (s *SQLite) Origin() string { return s.origin }

// Close is a no-op, the database is closed through the SQLiteDB.
func (s *SQLite) Close() error { return nil }

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// deleted keys are kept as NULL rows so that watchers see the deletion
	if value == nil {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, origin, version, updated_at) VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, origin = excluded.origin,
		 version = kv.version + 1, updated_at = excluded.updated_at`,
		key, value, s.origin, time.Now().UTC(),
	)
	return err
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE kv SET value = NULL, origin = ?, version = version + 1, updated_at = ?
		 WHERE key = ? AND value IS NOT NULL`,
		s.origin, time.Now().UTC(), key,
	)
	return err
}

type row struct {
	value   []byte
	origin  string
	version int64
}

func (s *SQLite) read(ctx context.Context, key string) (row, error) {
	var r row
	err := s.db.QueryRowContext(ctx, `SELECT value, origin, version FROM kv WHERE key = ?`, key).
		Scan(&r.value, &r.origin, &r.version)
	if errors.Is(err, sql.ErrNoRows) {
		return row{}, nil
	}
	return r, err
}

func (s *SQLite) Watch(ctx context.Context, key string) (<-chan Change, func(), error) {
	current, err := s.read(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan Change, watchBuffer)
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	go func() {
		defer close(ch)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		last := current.version
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			r, err := s.read(ctx, key)
			if err != nil || r.version == last {
				continue
			}
			last = r.version
			c := Change{
				Key:     key,
				Value:   r.value,
				Deleted: r.value == nil,
				Remote:  r.origin != s.origin,
			}
			select {
			case ch <- c:
			default:
			}
		}
	}()
	return ch, stop, nil
}
