package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/saeedalam/promptforge/pkg/types"
)

// Store persists build records and learned constraints in SQLite.
//
// The connection is opened on first use and kept for the life of the process.
// Several build processes may share one database file: every write is an
// upsert or an append, and lock contention is retried with backoff.
type Store struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	db      *sql.DB
	openErr error
}

// NewStore returns a store for the database under basePath. Nothing is opened yet.
func NewStore(basePath string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   filepath.Join(basePath, "promptforge.db"),
		logger: logger,
	}
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) conn() (*sql.DB, error) {
	if s == nil {
		return nil, types.ErrPersistenceUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}
	if s.openErr != nil {
		return nil, s.openErr
	}

	db, err := s.open()
	if err != nil {
		s.openErr = fmt.Errorf("%w: %v", types.ErrPersistenceUnavailable, err)
		return nil, s.openErr
	}
	s.db = db
	return db, nil
}

func (s *Store) open() (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", s.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// One connection per process; cross-process contention is handled by retry.
	db.SetMaxOpenConns(1)

	if err := withRetry(context.Background(), func() error { return createTables(db) }); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Build history (append-only)
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		framework TEXT NOT NULL,
		prompt TEXT,
		status TEXT NOT NULL,
		exe_path TEXT,
		source_dir TEXT,
		provider TEXT,
		model TEXT,
		branded INTEGER NOT NULL DEFAULT 0,
		build_time REAL NOT NULL DEFAULT 0,
		output TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_builds_name ON builds(name);

	-- Constraints learned from failed validations
	CREATE TABLE IF NOT EXISTS build_memory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		framework TEXT NOT NULL,
		constraint_text TEXT NOT NULL,
		error_pattern TEXT,
		hit_count INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(framework, constraint_text)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection if it was opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// --- Retry ---

const (
	retryAttempts = 6
	retryBase     = 25 * time.Millisecond
)

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}

// withRetry runs fn, backing off exponentially while SQLite reports a lock.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = fn(); !isBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(retryBase << attempt):
		}
	}
	return err
}

// --- Constraints ---

// SaveConstraint inserts a constraint with hit_count 1, or increments the
// count when the (framework, text) pair already exists.
func (s *Store) SaveConstraint(ctx context.Context, fw types.Framework, text, pattern string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	return withRetry(ctx, func() error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO build_memory (framework, constraint_text, error_pattern, hit_count, created_at, updated_at)
			VALUES (?, ?, ?, 1, ?, ?)
			ON CONFLICT(framework, constraint_text) DO UPDATE SET
				hit_count = hit_count + 1,
				error_pattern = COALESCE(NULLIF(excluded.error_pattern, ''), build_memory.error_pattern),
				updated_at = excluded.updated_at
		`, string(fw), text, pattern, now, now)
		return err
	})
}

// Constraints returns the constraints for a framework, most frequent first.
// An empty framework returns every constraint.
func (s *Store) Constraints(ctx context.Context, fw types.Framework) ([]types.BuildConstraint, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := `SELECT framework, constraint_text, COALESCE(error_pattern, ''), hit_count FROM build_memory`
	var args []any
	if fw != "" {
		query += ` WHERE framework = ?`
		args = append(args, string(fw))
	}
	query += ` ORDER BY hit_count DESC, id ASC`

	var out []types.BuildConstraint
	err = withRetry(ctx, func() error {
		out = out[:0]
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c types.BuildConstraint
			var framework string
			if err := rows.Scan(&framework, &c.ConstraintText, &c.ErrorPattern, &c.HitCount); err != nil {
				return err
			}
			c.Framework = types.Framework(framework)
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

// ClearConstraints deletes constraints for a framework (all when empty).
func (s *Store) ClearConstraints(ctx context.Context, fw types.Framework) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int64
	err = withRetry(ctx, func() error {
		var res sql.Result
		var err error
		if fw == "" {
			res, err = db.ExecContext(ctx, `DELETE FROM build_memory`)
		} else {
			res, err = db.ExecContext(ctx, `DELETE FROM build_memory WHERE framework = ?`, string(fw))
		}
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// --- Builds ---

// AddBuild appends a build record, assigning an ID and timestamp when unset.
func (s *Store) AddBuild(ctx context.Context, rec *types.BuildRecord) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	branded := 0
	if rec.Branded {
		branded = 1
	}
	return withRetry(ctx, func() error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO builds (id, name, framework, prompt, status, exe_path, source_dir, provider, model, branded, build_time, output, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, rec.Name, string(rec.Framework), rec.Prompt, rec.Status, rec.ExePath, rec.SourceDir,
			rec.Provider, rec.Model, branded, rec.BuildTime, rec.Output, rec.CreatedAt.UnixMilli())
		return err
	})
}

// ListBuilds returns build records, newest first. limit <= 0 returns all.
func (s *Store) ListBuilds(ctx context.Context, limit int) ([]types.BuildRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, framework, COALESCE(prompt, ''), status, COALESCE(exe_path, ''), COALESCE(source_dir, ''),
			COALESCE(provider, ''), COALESCE(model, ''), branded, build_time, COALESCE(output, ''), created_at
		FROM builds
		ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []types.BuildRecord
	err = withRetry(ctx, func() error {
		out = out[:0]
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var r types.BuildRecord
			var framework string
			var branded int
			var createdAt int64
			if err := rows.Scan(&r.ID, &r.Name, &framework, &r.Prompt, &r.Status, &r.ExePath, &r.SourceDir,
				&r.Provider, &r.Model, &branded, &r.BuildTime, &r.Output, &createdAt); err != nil {
				return err
			}
			r.Framework = types.Framework(framework)
			r.Branded = branded != 0
			r.CreatedAt = time.UnixMilli(createdAt)
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// RemoveBuild deletes every record with the given name.
func (s *Store) RemoveBuild(ctx context.Context, name string) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int64
	err = withRetry(ctx, func() error {
		res, err := db.ExecContext(ctx, `DELETE FROM builds WHERE name = ?`, name)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// GetStats summarises the build history and constraint memory.
func (s *Store) GetStats(ctx context.Context) (types.BuildStats, error) {
	stats := types.BuildStats{ByFramework: make(map[types.Framework]int)}
	db, err := s.conn()
	if err != nil {
		return stats, err
	}

	err = withRetry(ctx, func() error {
		rows, err := db.QueryContext(ctx, `SELECT framework, status, COUNT(*) FROM builds GROUP BY framework, status`)
		if err != nil {
			return err
		}
		defer rows.Close()

		stats.Total, stats.Completed, stats.Failed = 0, 0, 0
		stats.ByFramework = make(map[types.Framework]int)
		for rows.Next() {
			var fw, status string
			var n int
			if err := rows.Scan(&fw, &status, &n); err != nil {
				return err
			}
			stats.Total += n
			stats.ByFramework[types.Framework(fw)] += n
			switch status {
			case types.StatusCompleted:
				stats.Completed += n
			case types.StatusFailed:
				stats.Failed += n
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		// Release the single connection before the next query.
		rows.Close()
		return db.QueryRowContext(ctx, `SELECT COUNT(*) FROM build_memory`).Scan(&stats.Constraints)
	})
	return stats, err
}
