package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rodrigomiquilino/wwm-review/internal/cart"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore is the local persisted state: the suggestion cart draft and
// the TTL'd API response cache.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// SaveCart replaces the persisted cart draft with the given entries.
func (s *SQLiteStore) SaveCart(entries []cart.Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save cart: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM cart_entries`); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	for i, e := range entries {
		if _, err := tx.Exec(`INSERT INTO cart_entries
			(id, source_text, prior_text, suggestion, line_number, bulk_applied, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.SourceText, e.PriorText, e.Suggestion, e.LineNumber, boolToInt(e.BulkApplied), i); err != nil {
			return fmt.Errorf("insert cart entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// LoadCart returns the persisted cart draft in its original order.
func (s *SQLiteStore) LoadCart() ([]cart.Entry, error) {
	rows, err := s.db.Query(`SELECT id, source_text, prior_text, suggestion, line_number, bulk_applied
		FROM cart_entries ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	defer rows.Close()

	var entries []cart.Entry
	for rows.Next() {
		var e cart.Entry
		var bulk int
		if err := rows.Scan(&e.ID, &e.SourceText, &e.PriorText, &e.Suggestion, &e.LineNumber, &bulk); err != nil {
			return nil, fmt.Errorf("scan cart entry: %w", err)
		}
		e.BulkApplied = bulk != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CacheGet returns the raw cached payload and its write time for key.
func (s *SQLiteStore) CacheGet(key string) (string, time.Time, bool, error) {
	var data string
	var createdAt time.Time
	err := s.db.QueryRow(`SELECT data, created_at FROM api_cache WHERE cache_key = ?`, key).
		Scan(&data, &createdAt)
	if err == sql.ErrNoRows {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return data, createdAt, true, nil
}

// CacheSet stores the raw payload for key, stamping it with the current time.
func (s *SQLiteStore) CacheSet(key, data string) error {
	_, err := s.db.Exec(`INSERT INTO api_cache (cache_key, data, created_at) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// CacheDelete removes the entry for key, if any.
func (s *SQLiteStore) CacheDelete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM api_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
