package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dedup remembers processed event ids per consuming service. An id is only
// marked once its effect is committed, so a crash before that point leaves
// the event eligible for redelivery.
type Dedup struct {
	RDB     *redis.Client
	Service string
}

func (d *Dedup) key(id string) string { return fmt.Sprintf(KeyDedup, d.Service, id) }

// Seen reports whether id was already marked processed.
func (d *Dedup) Seen(ctx context.Context, id string) (bool, error) {
	return Exists(ctx, d.RDB, d.key(id))
}

// Mark records id as processed for TTLDedup.
func (d *Dedup) Mark(ctx context.Context, id string) error {
	return d.RDB.Set(ctx, d.key(id), "1", TTLDedup).Err()
}
