package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nexify_cache_lookups_total",
	Help: "Cache-aside lookups by result",
}, []string{"result"})

// misses collapses concurrent loads of the same key into one fetch.
var misses singleflight.Group

func getJSON(ctx context.Context, key string, dest any) (bool, error) {
	b, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dest)
}

// Aside reads key into dest, or on a miss calls fetch, which must fill
// dest, and caches the result for ttl. Concurrent misses on one key share a
// single fetch. Redis errors degrade to fetching; fetch errors are returned
// and never cached.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil {
		return fetch()
	}

	hit, err := getJSON(ctx, key, dest)
	switch {
	case err != nil:
		lookups.WithLabelValues("error").Inc()
	case hit:
		lookups.WithLabelValues("hit").Inc()
		return nil
	default:
		lookups.WithLabelValues("miss").Inc()
	}

	leader := false
	v, err, _ := misses.Do(key, func() (any, error) {
		leader = true
		if err := fetch(); err != nil {
			return nil, err
		}
		b, err := json.Marshal(dest)
		if err != nil {
			return nil, err
		}
		_ = client.Set(ctx, key, b, ttl).Err()
		return b, nil
	})
	if err != nil || leader {
		return err
	}
	return json.Unmarshal(v.([]byte), dest)
}
