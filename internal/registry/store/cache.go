package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"deedbook/internal/registry/models"
	id "deedbook/pkg/domain"
)

const propertyKeyPrefix = "registry:property:"

// Cached decorates a Store with a Redis read-through cache for ledger
// records. Mutations invalidate eagerly; the TTL bounds staleness if an
// invalidation is lost. Cache failures degrade to store reads and are
// never surfaced to callers.
type Cached struct {
	Store
	client *redis.Client
	ttl    time.Duration
}

// NewCached wraps inner with a property read cache.
func NewCached(inner Store, client *redis.Client, ttl time.Duration) *Cached {
	return &Cached{Store: inner, client: client, ttl: ttl}
}

func (c *Cached) FindProperty(ctx context.Context, propertyID id.PropertyID) (*models.Property, error) {
	key := propertyKeyPrefix + propertyID.String()

	// Any cache failure (miss, connection, corrupt entry) falls through to
	// the store.
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var p models.Property
		if json.Unmarshal(raw, &p) == nil {
			return &p, nil
		}
	}

	p, err := c.Store.FindProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(p); err == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return p, nil
}

func (c *Cached) ExecuteProperty(ctx context.Context, propertyID id.PropertyID,
	validate func(*models.Property) error,
	mutate func(*models.Property)) (*models.Property, error) {
	p, err := c.Store.ExecuteProperty(ctx, propertyID, validate, mutate)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, propertyID)
	return p, nil
}

func (c *Cached) invalidate(ctx context.Context, propertyID id.PropertyID) {
	_ = c.client.Del(ctx, propertyKeyPrefix+propertyID.String()).Err()
}
