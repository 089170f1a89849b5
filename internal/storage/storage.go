// Package storage defines the Storage interface — a contract that any
// database backend must satisfy to work with this application.
//
// Handlers (HTTP layer) only depend on this interface. The concrete
// backends live in sub-packages (sqlite, gormstore) and are picked at
// startup by backend.Open from the configured database URL.
//
// Every method takes the request context. Backends bind their queries
// to it, so each call runs in a session scoped to one request and is
// cancelled when the client goes away.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/heroes-api/internal/types"
)

// Domain errors. Backends translate driver errors into these so the
// HTTP layer can classify failures with errors.Is.
var (
	// ErrNotFound means no hero has the requested id.
	ErrNotFound = errors.New("hero not found")

	// ErrConflict means a hero with the supplied id already exists.
	ErrConflict = errors.New("hero already exists")
)

// ListOptions bounds a list query. A zero Limit means no limit.
type ListOptions struct {
	Offset int
	Limit  int
}

// Storage is the database contract.
type Storage interface {
	// CreateHero inserts a hero and returns the stored row. When
	// hero.ID is set and already taken it returns ErrConflict; the
	// check is the insert itself, not a separate lookup.
	CreateHero(ctx context.Context, hero types.HeroCreate) (types.Hero, error)

	// GetHeroByID returns ErrNotFound when no row matches.
	GetHeroByID(ctx context.Context, id int64) (types.Hero, error)

	// ListHeroes returns heroes ordered by id. The slice is empty
	// (not nil) when the table is empty.
	ListHeroes(ctx context.Context, opts ListOptions) ([]types.Hero, error)

	// UpdateHeroByID merges patch into the stored row inside a single
	// transaction and returns the result.
	UpdateHeroByID(ctx context.Context, id int64, patch types.HeroUpdate) (types.Hero, error)

	// DeleteHeroByID removes a hero permanently.
	DeleteHeroByID(ctx context.Context, id int64) error

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection pool.
	Close() error
}
