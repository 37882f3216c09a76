package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "taskkeeper:ratelimit:"

// 令牌桶脚本：原子地补充并尝试扣减令牌。
// 返回 {allowed, wait_ms, tokens}。
const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

if rate <= 0 or burst <= 0 then
  return {1, 0, burst}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
local refill = (delta * rate) / 1000.0
tokens = math.min(burst, tokens + refill)

local allowed = tokens >= requested
local wait_ms = 0
if allowed then
  tokens = tokens - requested
else
  wait_ms = math.ceil((requested - tokens) * 1000.0 / rate)
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, wait_ms, tokens}
`

// RateLimiter 基于 Redis 的令牌桶限流器，多实例共享同一配额。
type RateLimiter struct {
	rdb    *redis.Client
	rate   float64
	burst  float64
	logger *slog.Logger
	script *redis.Script
}

// NewRateLimiter 创建限流器。
//
// 参数:
//
//	rdb: Redis 客户端
//	rate: 每秒补充的令牌数
//	burst: 桶容量
func NewRateLimiter(rdb *redis.Client, rate, burst float64, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		rdb:    rdb,
		rate:   rate,
		burst:  burst,
		logger: logger,
		script: redis.NewScript(tokenBucketLua),
	}
}

// Allow 判断 key（如客户端 IP）当前是否允许一次请求。
//
// Redis 不可用时返回错误，由调用方决定失败开放还是关闭。
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r == nil || r.rdb == nil || r.rate <= 0 || r.burst <= 0 {
		return true, nil
	}

	now := time.Now().UnixMilli()
	res, err := r.script.Run(ctx, r.rdb, []string{keyPrefix + key}, r.rate, r.burst, now, 1).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit script: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 1 {
		return false, fmt.Errorf("ratelimit script: unexpected result %v", res)
	}
	allowed, ok := vals[0].(int64)
	if !ok {
		return false, fmt.Errorf("ratelimit script: unexpected result %v", res)
	}
	return allowed == 1, nil
}
