package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/trust-service/internal/core/ports"
)

// CachedDirectory est un décorateur read-through : les profils résolus
// passent par Redis avec un TTL court. Les négatifs ne sont PAS cachés,
// un compte tout juste créé doit être suivable immédiatement.
type CachedDirectory struct {
	inner  ports.IdentityDirectory
	client *redis.Client
	ttl    time.Duration
}

func NewCachedDirectory(inner ports.IdentityDirectory, client *redis.Client, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{inner: inner, client: client, ttl: ttl}
}

func cacheKey(email string) string {
	return "profile:" + email
}

func (d *CachedDirectory) Resolve(ctx context.Context, email string) (*domain.ProfileSummary, error) {
	raw, err := d.client.Get(ctx, cacheKey(email)).Result()
	if err == nil {
		var p domain.ProfileSummary
		if jsonErr := json.Unmarshal([]byte(raw), &p); jsonErr == nil {
			return &p, nil
		}
		// Entrée corrompue : on la laisse expirer et on retombe sur la source.
	} else if !errors.Is(err, redis.Nil) {
		// Redis down ne doit pas rendre l'annuaire indisponible.
		slog.Warn("profile cache read failed", "email", email, "error", err)
	}

	p, err := d.inner.Resolve(ctx, email)
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(p); jsonErr == nil {
		if setErr := d.client.Set(ctx, cacheKey(email), data, d.ttl).Err(); setErr != nil {
			slog.Warn("profile cache write failed", "email", email, "error", setErr)
		}
	}
	return p, nil
}

func (d *CachedDirectory) Exists(ctx context.Context, email string) (bool, error) {
	// Un hit cache suffit comme preuve d'existence.
	if n, err := d.client.Exists(ctx, cacheKey(email)).Result(); err == nil && n > 0 {
		return true, nil
	}
	return d.inner.Exists(ctx, email)
}
