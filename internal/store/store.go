package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the persistence gateway over database/sql.
//
// It executes the full-table load, bulk upsert-by-identity and bulk
// delete-by-identity statements the mirror needs, plus the thin CRUD
// helpers. Safe for concurrent use; the sqlite backend serializes on a
// single connection.
type Store struct {
	db      *sql.DB
	dialect Dialect
	path    string // sqlite database path, used to place attached schemas
	logger  *slog.Logger
	trace   bool

	mu       sync.Mutex
	attached map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for statement tracing.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracing enables debug-level logging of every statement.
func WithTracing(on bool) Option {
	return func(s *Store) { s.trace = on }
}

// Open connects to the backend named by driver ("sqlite" | "postgres").
// For sqlite, dsn is the database file path (":memory:" for an in-memory
// database). For postgres, dsn is a pgx connection string.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{
		db:       db,
		dialect:  dialect,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		attached: map[string]bool{"main": true, "temp": true},
	}
	for _, opt := range opts {
		opt(s)
	}

	if dialect.Name == SQLite.Name {
		s.path = dsn

		// ATTACH is per connection, so every statement must share one.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	return s, nil
}

// OpenSQLite opens a sqlite database file.
func OpenSQLite(path string, opts ...Option) (*Store, error) {
	return Open(SQLite.Name, path, opts...)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the backend dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

var schemaName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// EnsureSchema attaches a sqlite schema database on first use. Schema
// "tk" next to main.db lives in tk.db; in-memory stores attach in-memory
// schemas. No-op for postgres.
func (s *Store) EnsureSchema(ctx context.Context, schema string) error {
	if s.dialect.Name != SQLite.Name {
		return nil
	}
	if !schemaName.MatchString(schema) {
		return NewConfigurationError("attach schema", fmt.Sprintf("invalid schema name %q", schema))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached[schema] {
		return nil
	}

	file := ":memory:"
	if s.path != "" && s.path != ":memory:" && !strings.HasPrefix(s.path, "file:") {
		file = filepath.Join(filepath.Dir(s.path), schema+".db")
	}

	stmt := "ATTACH DATABASE ? AS " + quoteIdent(schema)
	if s.trace {
		s.logger.Debug("sql", "op", "attach", "statement", stmt, "file", file)
	}
	if _, err := s.db.ExecContext(ctx, stmt, file); err != nil {
		return NewGatewayError("attach schema", Table{Schema: schema}, err)
	}
	s.attached[schema] = true
	return nil
}

// exec runs a statement and returns the affected row count.
func (s *Store) exec(ctx context.Context, op string, t Table, stmt Statement) (int64, error) {
	if s.trace {
		s.logger.Debug("sql", "op", op, "table", t.String(), "statement", stmt.SQL, "args", len(stmt.Args))
	}

	res, err := s.db.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, NewGatewayError(op, t, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, NewGatewayError(op, t, fmt.Errorf("rows affected: %w", err))
	}
	return n, nil
}

// query runs a statement and returns its rows. Callers close the rows.
func (s *Store) query(ctx context.Context, op string, t Table, stmt Statement) (*sql.Rows, error) {
	if s.trace {
		s.logger.Debug("sql", "op", op, "table", t.String(), "statement", stmt.SQL, "args", len(stmt.Args))
	}

	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, NewGatewayError(op, t, err)
	}
	return rows, nil
}
