// Package backend turns a database URL into a storage.Storage.
//
//	postgres://... or postgresql://...  gorm over pgx
//	sqlite+gorm://path                  gorm over SQLite
//	sqlite://path or a bare path        raw SQL over SQLite
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aanand-mishra/heroes-api/internal/storage"
	"github.com/aanand-mishra/heroes-api/internal/storage/gormstore"
	"github.com/aanand-mishra/heroes-api/internal/storage/sqlite"
)

// Kind names a storage implementation.
type Kind string

const (
	KindSQLite     Kind = "sqlite"
	KindGormSQLite Kind = "gorm-sqlite"
	KindPostgres   Kind = "postgres"
)

// Parse reports which backend url selects and the DSN to hand it.
func Parse(url string) (Kind, string, error) {
	if url == "" {
		return "", "", fmt.Errorf("backend: empty database url")
	}

	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return KindPostgres, url, nil
	case strings.HasPrefix(url, "sqlite+gorm://"):
		return KindGormSQLite, strings.TrimPrefix(url, "sqlite+gorm://"), nil
	case strings.HasPrefix(url, "sqlite://"):
		return KindSQLite, strings.TrimPrefix(url, "sqlite://"), nil
	case strings.Contains(url, "://"):
		return "", "", fmt.Errorf("backend: unsupported database url scheme in %q", url)
	default:
		return KindSQLite, url, nil
	}
}

// Open connects to url and prepares the hero table.
func Open(ctx context.Context, url string, log *slog.Logger) (storage.Storage, Kind, error) {
	kind, dsn, err := Parse(url)
	if err != nil {
		return nil, "", err
	}

	var s storage.Storage
	switch kind {
	case KindPostgres:
		s, err = gormstore.OpenPostgres(ctx, dsn, log)
	case KindGormSQLite:
		s, err = gormstore.OpenSQLite(ctx, dsn, log)
	default:
		s, err = sqlite.New(ctx, dsn)
	}
	if err != nil {
		return nil, "", err
	}
	return s, kind, nil
}
