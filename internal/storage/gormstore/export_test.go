package gormstore

import "context"

// Reset empties the hero table and restarts its id sequence. Postgres only.
func (s *Store) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec("TRUNCATE hero RESTART IDENTITY").Error
}
