package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StatusCache mirrors order status so status polls skip the database. The
// database stays authoritative: cache failures are logged and ignored.
type StatusCache struct {
	RDB    *redis.Client
	Logger *zap.Logger
}

type CachedStatus struct {
	Status    model.OrderStatus `json:"status"`
	UpdatedAt time.Time         `json:"updated_at"`
	Version   int64             `json:"version"`
	Rank      int               `json:"rank"`
}

// setIfNewer replaces the cached entry only when the incoming (version, rank)
// is not older than the stored one. Writers racing after commit can then land
// in any order.
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, doc = pcall(cjson.decode, cur)
  if ok and doc.version then
    local v, r = tonumber(ARGV[2]), tonumber(ARGV[3])
    if doc.version > v or (doc.version == v and (doc.rank or 0) > r) then
      return 0
    end
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[4])
return 1
`)

// statusRank orders statuses that share an updated_at; settled wins.
func statusRank(s model.OrderStatus) int {
	if s == model.OrderPending {
		return 0
	}
	return 1
}

// SetStatus caches o's status unless a newer write for the order is already
// there. Version is o.UpdatedAt in microseconds.
func (c *StatusCache) SetStatus(ctx context.Context, o model.Order) {
	cs := CachedStatus{
		Status:    o.Status,
		UpdatedAt: o.UpdatedAt.UTC(),
		Version:   o.UpdatedAt.UnixMicro(),
		Rank:      statusRank(o.Status),
	}
	b, _ := json.Marshal(cs)
	keys := []string{fmt.Sprintf(KeyOrderStatus, o.ID)}
	err := setIfNewer.Run(ctx, c.RDB, keys, b, cs.Version, cs.Rank, TTLStatusCache.Milliseconds()).Err()
	if err != nil {
		c.Logger.Warn("status cache write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// Status returns the cached status, ok=false on a miss or cache error.
func (c *StatusCache) Status(ctx context.Context, orderID string) (CachedStatus, bool) {
	var out CachedStatus
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.Logger.Warn("status cache read failed", zap.String("order_id", orderID), zap.Error(err))
		}
		return out, false
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, false
	}
	return out, true
}
