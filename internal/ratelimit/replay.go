package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/revrec/internal/config"
)

const (
	keyReplayScope = "revrec:replay:%s"
	keyReplayAll   = "revrec:replay:lock:all"
)

// ReplayGuard throttles replay requests and keeps a single bulk replay
// running across all instances. A nil guard allows everything.
type ReplayGuard struct {
	client *redis.Client
	bucket *bucket
	bulk   *lease
}

func NewReplayGuard(cfg config.Config) (*ReplayGuard, error) {
	limitCfg := cfg.ReplayLimit
	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, nil
	}
	if limitCfg.Rate <= 0 || limitCfg.Burst <= 0 {
		return nil, errors.New("replay rate limit must be positive")
	}
	if limitCfg.LockTTLSeconds <= 0 {
		return nil, errors.New("replay lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
	return newReplayGuard(client, limitCfg), nil
}

func newReplayGuard(client *redis.Client, cfg config.ReplayLimitConfig) *ReplayGuard {
	return &ReplayGuard{
		client: client,
		bucket: newBucket(client, cfg.Rate, cfg.Burst),
		bulk:   newLease(client, keyReplayAll, time.Duration(cfg.LockTTLSeconds)*time.Second),
	}
}

func (g *ReplayGuard) Enabled() bool {
	return g != nil && g.client != nil
}

// Allow takes one token from the bucket for the given scope.
func (g *ReplayGuard) Allow(ctx context.Context, scope string) (Quota, error) {
	if !g.Enabled() {
		return Quota{Allowed: true}, nil
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "default"
	}
	return g.bucket.take(ctx, fmt.Sprintf(keyReplayScope, scope))
}

func (g *ReplayGuard) TryLockReplay(ctx context.Context) (string, bool, error) {
	if !g.Enabled() {
		return "", true, nil
	}
	return g.bulk.acquire(ctx)
}

func (g *ReplayGuard) ReleaseReplay(ctx context.Context, token string) error {
	if !g.Enabled() {
		return nil
	}
	return g.bulk.drop(ctx, token)
}

func (g *ReplayGuard) Close() error {
	if !g.Enabled() {
		return nil
	}
	return g.client.Close()
}
