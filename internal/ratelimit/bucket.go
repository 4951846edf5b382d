package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The bucket state lives in one hash per key. The script refills by elapsed
// server time, takes a token when one is available and reports how long the
// caller has to wait otherwise. Numbers leave Lua as strings because Redis
// truncates Lua floats to integers.
const replayBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
if now > ts then
  tokens = math.min(burst, tokens + ((now - ts) / 1000) * rate)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil(((1 - tokens) / rate) * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), wait}
`

// Quota is the outcome of one take from a bucket.
type Quota struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type bucket struct {
	client *redis.Client
	script *redis.Script
	rate   float64
	burst  int
	ttl    time.Duration
}

func newBucket(client *redis.Client, rate float64, burst int) *bucket {
	return &bucket{
		client: client,
		script: redis.NewScript(replayBucketScript),
		rate:   rate,
		burst:  burst,
		ttl:    idleTTL(rate, burst),
	}
}

func (b *bucket) take(ctx context.Context, key string) (Quota, error) {
	if b == nil || b.client == nil {
		return Quota{}, errors.New("replay bucket not configured")
	}

	res, err := b.script.Run(ctx, b.client, []string{key}, b.rate, b.burst, b.ttl.Milliseconds()).Slice()
	if err != nil {
		return Quota{}, err
	}
	return parseQuota(res, b.burst)
}

func parseQuota(res []any, burst int) (Quota, error) {
	if len(res) != 3 {
		return Quota{}, fmt.Errorf("unexpected bucket reply of %d values", len(res))
	}

	allowed, ok := res[0].(int64)
	if !ok {
		return Quota{}, fmt.Errorf("unexpected bucket allowed value %T", res[0])
	}
	remainingRaw, ok := res[1].(string)
	if !ok {
		return Quota{}, fmt.Errorf("unexpected bucket remaining value %T", res[1])
	}
	remaining, err := strconv.ParseFloat(remainingRaw, 64)
	if err != nil {
		return Quota{}, fmt.Errorf("parse bucket remaining: %w", err)
	}
	waitMillis, ok := res[2].(int64)
	if !ok {
		return Quota{}, fmt.Errorf("unexpected bucket wait value %T", res[2])
	}

	return Quota{
		Allowed:    allowed == 1,
		Limit:      burst,
		Remaining:  int(math.Floor(remaining)),
		RetryAfter: time.Duration(waitMillis) * time.Millisecond,
	}, nil
}

// idleTTL keeps an untouched bucket around for twice the time it needs to
// refill completely.
func idleTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Ceil((float64(burst) / rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
