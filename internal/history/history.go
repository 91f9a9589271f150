// Package history persists miner operation results into a local SQLite
// database so operators can audit what was switched or rebooted, and when.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	_ "modernc.org/sqlite"

	poolswitcher "github.com/jig0901/Bitcoin-Mining-Pool-Switcher"
	"github.com/jig0901/Bitcoin-Mining-Pool-Switcher/internal/config"
)

const (
	envHistoryDBPath  = "POOLSWITCHER_HISTORY_DB_PATH"
	defaultDBDirName  = ".poolswitcher"
	defaultDBFileName = "history.sqlite"
	tableName         = "operation_results"
)

// Entry is one persisted result row.
type Entry struct {
	ID        int64
	Miner     string
	Operation string
	Failure   string
	Detail    string
	CreatedAt time.Time
}

// Store writes and reads operation results. Implements poolswitcher.Recorder.
type Store struct {
	db     *sql.DB
	insert *sql.Stmt
	path   string
}

// Open creates (or reuses) the history database. An empty path resolves to
// POOLSWITCHER_HISTORY_DB_PATH or ~/.poolswitcher/history.sqlite.
func Open(path string) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", resolved)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "history: open sqlite database failed")
	}
	if err := configureSQLite(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := prepareSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	insert, err := db.Prepare(`INSERT INTO ` + tableName + ` (Miner, Operation, Failure, Detail, CreatedAt) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "history: prepare insert failed")
	}
	return &Store{db: db, insert: insert, path: resolved}, nil
}

// Path returns the resolved database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Record appends one result row.
func (s *Store) Record(ctx context.Context, res poolswitcher.Result) error {
	if s == nil || s.db == nil || s.insert == nil {
		return pkgerrors.New("history: store nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := s.insert.ExecContext(ctx,
		res.Miner,
		string(res.Operation),
		string(res.Failure),
		res.Detail,
		time.Now().Unix(),
	)
	if err != nil {
		return pkgerrors.Wrap(err, "history: insert result failed")
	}
	return nil
}

// Recent returns up to limit rows, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, pkgerrors.New("history: store nil")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, Miner, Operation, Failure, Detail, CreatedAt FROM `+tableName+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "history: query recent failed")
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			created int64
		)
		if err := rows.Scan(&entry.ID, &entry.Miner, &entry.Operation, &entry.Failure, &entry.Detail, &created); err != nil {
			return nil, pkgerrors.Wrap(err, "history: scan row failed")
		}
		entry.CreatedAt = time.Unix(created, 0)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "history: iterate rows failed")
	}
	return entries, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	if s.insert != nil {
		s.insert.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		if err := ensureDir(filepath.Dir(trimmed)); err != nil {
			return "", err
		}
		return trimmed, nil
	}
	if custom := config.String(envHistoryDBPath, ""); custom != "" {
		if err := ensureDir(filepath.Dir(custom)); err != nil {
			return "", err
		}
		return custom, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", pkgerrors.Wrap(err, "history: locate user home failed")
	}
	dir := filepath.Join(home, defaultDBDirName)
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	return filepath.Join(dir, defaultDBFileName), nil
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkgerrors.Wrapf(err, "history: create dir %s failed", dir)
	}
	return nil
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=10000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return pkgerrors.Wrapf(err, "history: execute %s failed", pragma)
		}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return nil
}

func prepareSchema(db *sql.DB) error {
	createTable := `CREATE TABLE IF NOT EXISTS ` + tableName + ` (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		Miner TEXT NOT NULL,
		Operation TEXT NOT NULL,
		Failure TEXT NOT NULL DEFAULT '',
		Detail TEXT NOT NULL DEFAULT '',
		CreatedAt INTEGER NOT NULL
	);`
	if _, err := db.Exec(createTable); err != nil {
		return pkgerrors.Wrap(err, "history: init schema failed")
	}
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_` + tableName + `_miner ON ` + tableName + `(Miner, CreatedAt DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_` + tableName + `_created ON ` + tableName + `(CreatedAt DESC);`,
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return pkgerrors.Wrap(err, "history: init indexes failed")
		}
	}
	return nil
}
