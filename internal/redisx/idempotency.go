package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Idempotency maps client Idempotency-Key values to the order they created.
type Idempotency struct {
	RDB *redis.Client
}

func (i *Idempotency) Lookup(ctx context.Context, key string) (string, bool, error) {
	id, err := i.RDB.Get(ctx, fmt.Sprintf(KeyIdemCheckout, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Remember records orderID for key unless the key is already taken.
func (i *Idempotency) Remember(ctx context.Context, key, orderID string) error {
	return i.RDB.SetNX(ctx, fmt.Sprintf(KeyIdemCheckout, key), orderID, TTLIdempotency).Err()
}
