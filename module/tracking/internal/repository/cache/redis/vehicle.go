package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/fleetsight/tracking/module/tracking/domain"
	"github.com/fleetsight/tracking/module/tracking/internal/repository/cache"
)

var _ cache.VehicleCache = (*VehicleCache)(nil)

const keyPrefix = "fleet:vehicle:"

// VehicleCache keeps the latest normalized state per vehicle in Redis,
// msgpack-encoded, with a TTL so silent vehicles age out on their own.
type VehicleCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewVehicleCache(rdb *goredis.Client, ttl time.Duration) *VehicleCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &VehicleCache{rdb: rdb, ttl: ttl}
}

func (c *VehicleCache) SetVehicle(ctx context.Context, v *domain.Vehicle) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode vehicle: %w", err)
	}
	return c.rdb.Set(ctx, keyPrefix+v.ID, payload, c.ttl).Err()
}

func (c *VehicleCache) GetVehicle(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	payload, err := c.rdb.Get(ctx, keyPrefix+vehicleID).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var v domain.Vehicle
	if err := msgpack.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decode vehicle: %w", err)
	}
	return &v, nil
}
