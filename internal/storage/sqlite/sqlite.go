// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using sqlx on top of database/sql.
//
// WHY SQLite?
// ───────────
// SQLite stores everything in a single file on disk. There is no
// network, no separate server process, and no installation beyond the
// driver. It is fast enough for most projects and trivial to set up.
//
// The mattn/go-sqlite3 import registers the "sqlite3" driver with
// database/sql as a side effect of being loaded; we also reference its
// error types directly to recognise UNIQUE-constraint violations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/aanand-mishra/users-api/internal/config"
	"github.com/aanand-mishra/users-api/internal/storage"
	"github.com/aanand-mishra/users-api/internal/types"
)

// Store is the concrete implementation of storage.Storage.
// It holds a *sqlx.DB, which wraps the database/sql connection pool and
// adds struct scanning. A single *sqlx.DB is safe for concurrent use by
// multiple goroutines; each request borrows a connection for exactly
// one operation and returns it on every exit path.
type Store struct {
	db  *sqlx.DB
	obs *observability
}

// New opens the SQLite database at the path specified in
// cfg.StoragePath, applies the write-friendly pragmas, creates the
// users table if it does not already exist, and returns a ready-to-use
// *Store. Options configure logging, tracing, and metrics; with no
// options the store runs silent.
func New(cfg *config.Config, opts ...Option) (*Store, error) {
	// sqlx.Open does NOT open a real connection yet — it just validates
	// the driver name and data source name (DSN).
	// The first actual connection happens on the first statement.
	db, err := sqlx.Open("sqlite3", cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// WAL keeps readers unblocked during writes; NORMAL sync is the
	// usual durability/throughput trade for WAL databases.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite.New: %s: %w", pragma, err)
		}
	}

	// CREATE TABLE IF NOT EXISTS is idempotent — safe to run on every
	// startup. The UNIQUE constraint on email is what turns a duplicate
	// insert into a constraint error instead of a second row; age keeps
	// the documented default of 0 when the caller omits it.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			name  TEXT    NOT NULL,
			email TEXT    NOT NULL UNIQUE,
			age   INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	s := &Store{db: db, obs: defaultObservability()}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Close releases the underlying connection pool. Servers keep the store
// for the process lifetime; tests close it in cleanup.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new row into the users table and echoes the
// record back with the assigned id, so callers can return exactly what
// is stored.
//
// The query is built with squirrel placeholders, so user input travels
// to the driver as bound arguments, never as SQL text. A violation of
// the UNIQUE email constraint is translated to storage.ErrDuplicateEmail;
// every other failure surfaces as a wrapped storage error.
func (s *Store) CreateUser(ctx context.Context, name string, email string, age int) (types.User, error) {
	query, args, err := sq.Insert("users").
		Columns("name", "email", "age").
		Values(name, email, age).
		ToSql()
	if err != nil {
		return types.User{}, fmt.Errorf("CreateUser: build query: %w", err)
	}

	ctx, finish := s.observe(ctx, "CreateUser", query)
	result, err := s.db.ExecContext(ctx, query, args...)
	finish(err)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return types.User{}, fmt.Errorf("CreateUser: %w", storage.ErrDuplicateEmail)
		}
		return types.User{}, fmt.Errorf("CreateUser: exec: %w", err)
	}

	// LastInsertId returns the auto-generated primary key of the new row.
	id, err := result.LastInsertId()
	if err != nil {
		return types.User{}, fmt.Errorf("CreateUser: last insert id: %w", err)
	}

	return types.User{ID: id, Name: name, Email: email, Age: age}, nil
}

// GetUserByID fetches exactly one user row matched by primary key.
// sqlx's GetContext maps the columns onto the struct through its
// db:"..." tags, replacing the manual column-by-column Scan.
func (s *Store) GetUserByID(ctx context.Context, id int64) (types.User, error) {
	query, args, err := sq.Select("id", "name", "email", "age").
		From("users").
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return types.User{}, fmt.Errorf("GetUserByID: build query: %w", err)
	}

	var user types.User
	ctx, finish := s.observe(ctx, "GetUserByID", query)
	err = s.db.GetContext(ctx, &user, query, args...)
	finish(err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// sql.ErrNoRows is the driver's sentinel for "nothing
			// matched"; callers get ours so the handler can map it to a
			// 404 without knowing about database/sql.
			return types.User{}, fmt.Errorf("GetUserByID %d: %w", id, storage.ErrNotFound)
		}
		return types.User{}, fmt.Errorf("GetUserByID: get: %w", err)
	}

	return user, nil
}

// ListUsers returns one page of users ordered by ascending id.
//
// ORDER BY is what makes LIMIT/OFFSET pagination deterministic: without
// it SQLite may return rows in any order and pages could overlap or
// skip records between requests.
func (s *Store) ListUsers(ctx context.Context, skip, limit int) ([]types.User, error) {
	query, args, err := sq.Select("id", "name", "email", "age").
		From("users").
		OrderBy("id ASC").
		Limit(uint64(limit)).
		Offset(uint64(skip)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ListUsers: build query: %w", err)
	}

	// Pre-allocate an empty (non-nil) slice.
	// Returning [] instead of null in JSON is better API behaviour.
	users := make([]types.User, 0, limit)

	ctx, finish := s.observe(ctx, "ListUsers", query)
	err = s.db.SelectContext(ctx, &users, query, args...)
	finish(err)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: select: %w", err)
	}

	return users, nil
}
