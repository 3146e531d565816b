package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/metrics"
)

const (
	limitPrefix     = "todo:ratelimit:"
	violationPrefix = "todo:violations:"
	blockPrefix     = "todo:blocked:"

	// violationsBeforeBlock rejected requests within an hour block the IP.
	violationsBeforeBlock = 10
	blockDuration         = 24 * time.Hour
)

// KeyFunc derives the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// Rule allows Limit requests per Window for each key.
type Rule struct {
	Limit  int
	Window time.Duration
	Key    KeyFunc
}

// DefaultRules are the limits applied to the public API, keyed by
// "METHOD /path".
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		"POST /register": {10, time.Hour, ByIP},
		"POST /token":    {30, time.Minute, ByIP},
		"GET /ws":        {30, time.Minute, ByIP},
		"POST /upload":   {20, time.Hour, ByBearer},
		"GET /todos":     {120, time.Minute, ByBearer},
		"GET /users/me":  {120, time.Minute, ByBearer},
	}
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Whitelist        []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled bool     // block IPs after repeated violations
	Rules            map[string]Rule
}

// RateLimiter counts requests per rule in fixed windows stored in Redis.
// Redis errors let the request through.
type RateLimiter struct {
	client    *redis.Client
	rules     map[string]Rule
	exempt    []netip.Prefix
	autoBlock bool
	logger    zerolog.Logger
}

// NewRateLimiter creates a rate limiter. A nil cfg.Rules selects DefaultRules.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		client:    client,
		rules:     cfg.Rules,
		autoBlock: cfg.AutoBlockEnabled,
		logger:    logger,
	}
	if rl.rules == nil {
		rl.rules = DefaultRules()
	}

	for _, entry := range cfg.Whitelist {
		prefix, err := parseExempt(entry)
		if err != nil {
			logger.Warn().Str("entry", entry).Err(err).Msg("invalid rate limit whitelist entry")
			continue
		}
		rl.exempt = append(rl.exempt, prefix)
	}
	if len(rl.exempt) > 0 {
		logger.Info().Int("entries", len(rl.exempt)).Msg("rate limit whitelist configured")
	}

	return rl
}

func parseExempt(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		return netip.ParsePrefix(entry)
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (rl *RateLimiter) isExempt(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, p := range rl.exempt {
		if p.Contains(addr.Unmap()) {
			return true
		}
	}
	return false
}

// ByIP counts requests per client IP.
func ByIP(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// ByBearer counts requests per bearer token, falling back to the client IP.
// The limiter runs before authentication, and a token belongs to exactly
// one user.
func ByBearer(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return ByIP(r)
	}
	sum := sha256.Sum256([]byte(token))
	return "token:" + hex.EncodeToString(sum[:8])
}

// ClientIP returns the client address. chi's RealIP middleware has already
// applied X-Forwarded-For and X-Real-IP to RemoteAddr.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Allow counts one request against key and reports whether it fits in the
// window, how many remain, and when the window resets.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rule Rule) (bool, int, time.Duration, error) {
	redisKey := limitPrefix + key

	var count *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, redisKey)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return true, rule.Limit, rule.Window, err
	}

	reset := ttl.Val()
	if reset <= 0 {
		// First request of the window.
		if err := rl.client.PExpire(ctx, redisKey, rule.Window).Err(); err != nil {
			return true, rule.Limit, rule.Window, err
		}
		reset = rule.Window
	}

	n := int(count.Val())
	return n <= rule.Limit, max(rule.Limit-n, 0), reset, nil
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if rl.isExempt(ip) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		if rl.autoBlock && rl.isBlocked(ctx, ip) {
			rl.logger.Warn().
				Str("type", "security").
				Str("event", "blocked_request").
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Msg("blocked IP attempted request")
			metrics.BlockedRequests.WithLabelValues("ip_blocked").Inc()
			jsonError(w, http.StatusForbidden, "temporarily blocked")
			return
		}

		endpoint := r.Method + " " + r.URL.Path
		rule, ok := rl.rules[endpoint]
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		key := rule.Key(r)
		allowed, remaining, reset, err := rl.Allow(ctx, key, rule)
		if err != nil {
			rl.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

		if !allowed {
			retry := int((reset + time.Second - 1) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
			rl.logger.Warn().
				Str("type", "security").
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("endpoint", endpoint).
				Str("key", key).
				Msg("rate limit exceeded")
			rl.recordViolation(ctx, ip)
			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) isBlocked(ctx context.Context, ip string) bool {
	n, err := rl.client.Exists(ctx, blockPrefix+ip).Result()
	return err == nil && n > 0
}

// recordViolation blocks an IP once it keeps exceeding its limits.
func (rl *RateLimiter) recordViolation(ctx context.Context, ip string) {
	if !rl.autoBlock {
		return
	}

	key := violationPrefix + ip
	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return
	}
	if count == 1 {
		rl.client.Expire(ctx, key, time.Hour)
	}
	if count < violationsBeforeBlock {
		return
	}

	rl.client.Set(ctx, blockPrefix+ip, "repeated rate limit violations", blockDuration)
	rl.logger.Warn().
		Str("type", "security").
		Str("event", "ip_auto_blocked").
		Str("ip", ip).
		Int64("violations", count).
		Msg("IP blocked for repeated violations")
}
