package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

// DefaultCacheTTL is how long catalog lookups stay cached. Stock is
// re-checked at order assembly, so briefly stale counts are acceptable here.
const DefaultCacheTTL = 2 * time.Minute

// CachedGateway is a read-through Redis cache in front of another Gateway.
// Cache failures degrade to the inner gateway; they are never fatal.
type CachedGateway struct {
	inner Gateway
	rdb   *redis.Client
	ttl   time.Duration
}

var _ Gateway = (*CachedGateway)(nil)

// NewCachedGateway wraps inner with a Redis read-through cache.
func NewCachedGateway(inner Gateway, rdb *redis.Client, ttl time.Duration) *CachedGateway {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedGateway{inner: inner, rdb: rdb, ttl: ttl}
}

func productKey(id int64) string    { return fmt.Sprintf("product:%d", id) }
func searchKey(term string, limit int) string {
	return fmt.Sprintf("product_search:%d:%s", limit, term)
}

func (g *CachedGateway) Search(ctx context.Context, term string, limit int) ([]models.Product, error) {
	key := searchKey(term, limit)
	if data, err := g.rdb.Get(ctx, key).Bytes(); err == nil {
		var products []models.Product
		if err := json.Unmarshal(data, &products); err == nil {
			slog.Debug("CachedGateway.Search cache hit", "term", term)
			return products, nil
		}
	} else if err != redis.Nil {
		slog.Warn("CachedGateway.Search cache read failed", "error", err, "term", term)
	}

	products, err := g.inner.Search(ctx, term, limit)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(products); err == nil {
		if err := g.rdb.Set(ctx, key, data, g.ttl).Err(); err != nil {
			slog.Warn("CachedGateway.Search cache write failed", "error", err, "term", term)
		}
	}
	return products, nil
}

func (g *CachedGateway) Get(ctx context.Context, id int64) (*models.Product, error) {
	key := productKey(id)
	if data, err := g.rdb.Get(ctx, key).Bytes(); err == nil {
		var product models.Product
		if err := json.Unmarshal(data, &product); err == nil {
			slog.Debug("CachedGateway.Get cache hit", "product_id", id)
			return &product, nil
		}
	} else if err != redis.Nil {
		slog.Warn("CachedGateway.Get cache read failed", "error", err, "product_id", id)
	}

	product, err := g.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(product); err == nil {
		if err := g.rdb.Set(ctx, key, data, g.ttl).Err(); err != nil {
			slog.Warn("CachedGateway.Get cache write failed", "error", err, "product_id", id)
		}
	}
	return product, nil
}

// InitRedis connects a Redis client, verifying the connection with a short ping.
func InitRedis(addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: 0})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	slog.Info("Redis connection established", "addr", addr)
	return rdb, nil
}
