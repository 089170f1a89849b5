// Package gormstore implements storage.Storage on top of gorm. It is the
// backend used for Postgres, and can also run over gorm's SQLite dialect.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aanand-mishra/heroes-api/internal/storage"
	"github.com/aanand-mishra/heroes-api/internal/types"
)

// heroRecord is the table mapping. It stays private so gorm tags do not
// leak into the API types.
type heroRecord struct {
	ID         int64  `gorm:"primaryKey"`
	Name       string `gorm:"not null;index:ix_hero_name"`
	SecretName string `gorm:"not null"`
	Age        *int   `gorm:"index:ix_hero_age"`
}

func (heroRecord) TableName() string { return "hero" }

func (r heroRecord) hero() types.Hero {
	return types.Hero{ID: r.ID, Name: r.Name, SecretName: r.SecretName, Age: r.Age}
}

func recordFrom(h types.Hero) heroRecord {
	return heroRecord{ID: h.ID, Name: h.Name, SecretName: h.SecretName, Age: h.Age}
}

// Store is a gorm-backed storage.Storage.
type Store struct {
	db *gorm.DB
}

var _ storage.Storage = (*Store)(nil)

// New opens dialector, migrates the hero table and returns a Store.
// TranslateError makes gorm report duplicate keys as
// gorm.ErrDuplicatedKey regardless of the driver underneath.
func New(ctx context.Context, dialector gorm.Dialector, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         newLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore.New: open: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&heroRecord{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("gormstore.New: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenPostgres parses dsn with pgx, builds a bounded pool and fails fast
// when the server is unreachable.
func OpenPostgres(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("gormstore.OpenPostgres: parse dsn: %w", err)
	}

	sqlDB := stdlib.OpenDB(*cfg)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("gormstore.OpenPostgres: ping: %w", err)
	}

	store, err := New(ctx, postgres.New(postgres.Config{Conn: sqlDB}), log)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return store, nil
}

// OpenSQLite opens path through gorm's SQLite dialect.
func OpenSQLite(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	return New(ctx, sqlite.Open(path), log)
}

// advanceSequence moves the Postgres id sequence up to a client-chosen
// id. It only ever moves forward: an id at or below the sequence's last
// value leaves it alone, so ids freed by deletes are not handed out again.
const advanceSequence = `
	SELECT setval(pg_get_serial_sequence('hero', 'id'), ?)
	WHERE ? > COALESCE(pg_sequence_last_value(pg_get_serial_sequence('hero', 'id')::regclass), 0)`

// CreateHero relies on the primary key for the conflict check.
//
// On Postgres an explicit id does not advance the id sequence, so the
// sequence is moved up to it in the same transaction. Otherwise a later
// server-assigned id would collide with it.
func (s *Store) CreateHero(ctx context.Context, in types.HeroCreate) (types.Hero, error) {
	rec := recordFrom(in.Hero())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		if in.ID != nil && tx.Dialector.Name() == "postgres" {
			return tx.Exec(advanceSequence, rec.ID, rec.ID).Error
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return types.Hero{}, storage.ErrConflict
		}
		return types.Hero{}, fmt.Errorf("CreateHero: %w", err)
	}

	return rec.hero(), nil
}

func (s *Store) GetHeroByID(ctx context.Context, id int64) (types.Hero, error) {
	var rec heroRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Hero{}, storage.ErrNotFound
		}
		return types.Hero{}, fmt.Errorf("GetHeroByID: %w", err)
	}
	return rec.hero(), nil
}

func (s *Store) ListHeroes(ctx context.Context, opts storage.ListOptions) ([]types.Hero, error) {
	q := s.db.WithContext(ctx).Order("id")
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var recs []heroRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("ListHeroes: %w", err)
	}

	heroes := make([]types.Hero, 0, len(recs))
	for _, rec := range recs {
		heroes = append(heroes, rec.hero())
	}
	return heroes, nil
}

// UpdateHeroByID reads, merges and saves inside one transaction. Save
// writes every column, so a cleared age becomes NULL. On Postgres the row
// is read FOR UPDATE so concurrent patches serialise.
func (s *Store) UpdateHeroByID(ctx context.Context, id int64, patch types.HeroUpdate) (types.Hero, error) {
	var hero types.Hero

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var rec heroRecord
		if err := q.First(&rec, id).Error; err != nil {
			return err
		}

		hero = rec.hero()
		patch.Apply(&hero)

		rec = recordFrom(hero)
		return tx.Save(&rec).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Hero{}, storage.ErrNotFound
		}
		return types.Hero{}, fmt.Errorf("UpdateHeroByID: %w", err)
	}

	return hero, nil
}

func (s *Store) DeleteHeroByID(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&heroRecord{}, id)
	if res.Error != nil {
		return fmt.Errorf("DeleteHeroByID: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
