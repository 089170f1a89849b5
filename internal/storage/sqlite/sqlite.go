// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// SQLite stores everything in a single file on disk. There is no
// network, no separate server process, and no installation beyond the
// driver.
//
// Importing go-sqlite3 registers the "sqlite3" driver with database/sql;
// its error types are used to recognise primary key violations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/aanand-mishra/heroes-api/internal/storage"
	"github.com/aanand-mishra/heroes-api/internal/types"
)

// DSN options appended when the caller did not pass any of their own.
// _txlock=immediate takes the write lock at BEGIN, so the
// read-modify-write in UpdateHeroByID cannot interleave with another
// writer.
const defaultDSNOptions = "_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"

const heroColumns = "id, name, secret_name, age"

// schema is idempotent, so it is safe to run on every startup.
//
//	id           primary key; AUTOINCREMENT keeps deleted ids from
//	             being handed out again, explicit ids are still allowed
//	             up to types.MaxHeroID so generated ids never run out
//	name         indexed for lookup
//	secret_name  required, not indexed
//	age          optional, indexed
const schema = `
	CREATE TABLE IF NOT EXISTS hero (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT    NOT NULL,
		secret_name TEXT    NOT NULL,
		age         INTEGER
	);
	CREATE INDEX IF NOT EXISTS ix_hero_name ON hero (name);
	CREATE INDEX IF NOT EXISTS ix_hero_age ON hero (age);
`

// SQLite is the concrete implementation of storage.Storage.
// It holds a *sql.DB which is a connection pool managed by database/sql.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Storage = (*SQLite)(nil)

// New opens the SQLite database at path, creates the hero table if it
// does not already exist, and returns a ready-to-use *SQLite.
func New(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// Each connection to ":memory:" is its own database.
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?" + defaultDSNOptions
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanHero reads the heroColumns, in order, into a types.Hero.
// age is nullable, so it goes through sql.NullInt64 first.
func scanHero(row rowScanner) (types.Hero, error) {
	var (
		hero types.Hero
		age  sql.NullInt64
	)
	if err := row.Scan(&hero.ID, &hero.Name, &hero.SecretName, &age); err != nil {
		return types.Hero{}, err
	}
	if age.Valid {
		v := int(age.Int64)
		hero.Age = &v
	}
	return hero, nil
}

// isPrimaryKeyViolation reports whether err is SQLite refusing a
// duplicate id.
func isPrimaryKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// ─────────────────────────────────────────────────────────────────────────────
// CreateHero inserts a new row into the hero table.
//
// There is no "does this id exist?" query first. The INSERT itself is
// the check: a duplicate id trips the primary key constraint, which is
// reported as storage.ErrConflict. Two concurrent creates with the same
// id therefore cannot both succeed.
//
// RETURNING hands back the stored row (including a generated id) in the
// same statement.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) CreateHero(ctx context.Context, in types.HeroCreate) (types.Hero, error) {
	var row *sql.Row
	if in.ID != nil {
		row = s.Db.QueryRowContext(ctx,
			"INSERT INTO hero (id, name, secret_name, age) VALUES (?, ?, ?, ?) RETURNING "+heroColumns,
			*in.ID, in.Name, in.SecretName, in.Age,
		)
	} else {
		row = s.Db.QueryRowContext(ctx,
			"INSERT INTO hero (name, secret_name, age) VALUES (?, ?, ?) RETURNING "+heroColumns,
			in.Name, in.SecretName, in.Age,
		)
	}

	hero, err := scanHero(row)
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return types.Hero{}, storage.ErrConflict
		}
		return types.Hero{}, fmt.Errorf("CreateHero: insert: %w", err)
	}

	return hero, nil
}

// GetHeroByID fetches exactly one hero row matched by primary key.
func (s *SQLite) GetHeroByID(ctx context.Context, id int64) (types.Hero, error) {
	hero, err := scanHero(s.Db.QueryRowContext(ctx,
		"SELECT "+heroColumns+" FROM hero WHERE id = ? LIMIT 1", id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Hero{}, storage.ErrNotFound
		}
		return types.Hero{}, fmt.Errorf("GetHeroByID: scan: %w", err)
	}

	return hero, nil
}

// ListHeroes returns hero rows ordered by id. LIMIT -1 is SQLite for
// "no limit", which lets an offset stand on its own.
func (s *SQLite) ListHeroes(ctx context.Context, opts storage.ListOptions) ([]types.Hero, error) {
	query := "SELECT " + heroColumns + " FROM hero ORDER BY id"
	var args []any
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, opts.Offset)
	}

	rows, err := s.Db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListHeroes: query: %w", err)
	}
	defer rows.Close()

	// Returning [] instead of null in JSON is better API behaviour.
	heroes := make([]types.Hero, 0)
	for rows.Next() {
		hero, err := scanHero(rows)
		if err != nil {
			return nil, fmt.Errorf("ListHeroes: scan row: %w", err)
		}
		heroes = append(heroes, hero)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListHeroes: rows iteration: %w", err)
	}

	return heroes, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// UpdateHeroByID applies a merge-patch to one hero.
//
// The read, the merge and the write share one transaction. The deferred
// Rollback is a no-op once Commit has succeeded and releases the
// connection on every early return.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) UpdateHeroByID(ctx context.Context, id int64, patch types.HeroUpdate) (types.Hero, error) {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return types.Hero{}, fmt.Errorf("UpdateHeroByID: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	hero, err := scanHero(tx.QueryRowContext(ctx,
		"SELECT "+heroColumns+" FROM hero WHERE id = ?", id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Hero{}, storage.ErrNotFound
		}
		return types.Hero{}, fmt.Errorf("UpdateHeroByID: select: %w", err)
	}

	patch.Apply(&hero)

	// Argument order matches the ? order: name, secret_name, age, id.
	_, err = tx.ExecContext(ctx,
		"UPDATE hero SET name = ?, secret_name = ?, age = ? WHERE id = ?",
		hero.Name, hero.SecretName, hero.Age, id,
	)
	if err != nil {
		return types.Hero{}, fmt.Errorf("UpdateHeroByID: exec: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.Hero{}, fmt.Errorf("UpdateHeroByID: commit: %w", err)
	}

	return hero, nil
}

// DeleteHeroByID removes a hero row by primary key. A single statement
// decides both existence and removal.
func (s *SQLite) DeleteHeroByID(ctx context.Context, id int64) error {
	result, err := s.Db.ExecContext(ctx, "DELETE FROM hero WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("DeleteHeroByID: exec: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteHeroByID: rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// Ping checks the connection pool.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.Db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}
