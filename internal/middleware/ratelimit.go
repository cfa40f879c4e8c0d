// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/tier"
)

const keyPrefix = "ratelimit:"

// KeyFunc names the bucket a request is charged to.
type KeyFunc func(*http.Request) string

type RateLimitConfig struct {
	// Name separates buckets of limiters that key on the same identity.
	Name  string
	Limit redis_rate.Limit
	// LimitFunc, when set, picks the limit per request instead of Limit.
	LimitFunc func(*http.Request) redis_rate.Limit
	KeyFunc   KeyFunc
	// FailOpen lets requests through when neither Redis nor the local
	// fallback can answer.
	FailOpen bool
}

// RateLimiter enforces a GCRA limit in Redis. While Redis is unreachable
// each instance falls back to an in-process token bucket, so limits become
// per replica instead of global.
type RateLimiter struct {
	redis    *redis_rate.Limiter
	fallback *localLimiter
	cfg      RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.Name == "" {
		cfg.Name = "global"
	}
	if cfg.LimitFunc == nil {
		limit := cfg.Limit
		cfg.LimitFunc = func(*http.Request) redis_rate.Limit { return limit }
	}

	return &RateLimiter{
		redis:    redis_rate.NewLimiter(rdb),
		fallback: newLocalLimiter(),
		cfg:      cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := keyPrefix + rl.cfg.Name + ":" + rl.cfg.KeyFunc(r)
		limit := rl.cfg.LimitFunc(r)

		res, err := rl.allow(r.Context(), key, limit)
		if err != nil {
			if !rl.cfg.FailOpen {
				core.JSONError(w, core.InternalError(err))
				return
			}
			slog.Warn("rate limiter unavailable, failing open", "key", key, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		writeLimitHeaders(w.Header(), res, limit)
		if res.Allowed == 0 {
			retry := max(int(res.RetryAfter.Seconds()), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			core.JSONError(w, core.RateLimitedError(retry))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(
	ctx context.Context,
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	res, err := rl.redis.Allow(ctx, key, limit)
	if err == nil {
		return res, nil
	}
	return rl.fallback.allow(key, limit, time.Now())
}

func writeLimitHeaders(h http.Header, res *redis_rate.Result, limit redis_rate.Limit) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d", limit.Rate, int(limit.Period.Seconds())))
}

// Limit builds a redis_rate limit of n requests per period.
func Limit(n, burst int, period time.Duration) redis_rate.Limit {
	if period <= 0 {
		period = time.Minute
	}
	return redis_rate.Limit{Rate: n, Burst: burst, Period: period}
}

func PerMinute(n, burst int) redis_rate.Limit { return Limit(n, burst, time.Minute) }

func PerHour(n, burst int) redis_rate.Limit { return Limit(n, burst, time.Hour) }

func KeyByIP(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// ClientIP uses the last X-Forwarded-For hop, the one our own proxy
// appended, then X-Real-IP, then the socket address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func KeyByUser(r *http.Request) string {
	if id := GetUserID(r.Context()); id != "" {
		return "user:" + id
	}
	return KeyByIP(r)
}

// KeyByUserAndEndpoint charges each endpoint separately, with id segments
// collapsed so /bookmarks/1 and /bookmarks/2 share a bucket.
func KeyByUserAndEndpoint(r *http.Request) string {
	return KeyByUser(r) + ":" + endpointShape(r.URL.Path)
}

func endpointShape(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if looksLikeID(p) {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func looksLikeID(s string) bool {
	if len(s) == 36 && s[8] == '-' && s[13] == '-' && s[18] == '-' && s[23] == '-' {
		return true
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

// TierLimits is the per-minute budget of one subscription tier.
type TierLimits struct {
	RequestsPerMinute int
	Burst             int
}

// DefaultTiers sizes per-user request budgets by subscription tier.
var DefaultTiers = map[tier.Tier]TierLimits{
	tier.Free:    {RequestsPerMinute: 60, Burst: 10},
	tier.Blaze:   {RequestsPerMinute: 300, Burst: 50},
	tier.Premium: {RequestsPerMinute: 1200, Burst: 200},
}

// TieredRateLimiter limits each caller by the tier in their token. It must
// run after Authenticator or OptionalAuth; anonymous callers get the free
// budget keyed by IP.
func TieredRateLimiter(
	rdb *redis.Client,
	tiers map[tier.Tier]TierLimits,
) func(http.Handler) http.Handler {
	rl := NewRateLimiter(rdb, RateLimitConfig{
		Name:    "tier",
		KeyFunc: KeyByUser,
		LimitFunc: func(r *http.Request) redis_rate.Limit {
			tl, ok := tiers[GetUserTier(r.Context())]
			if !ok {
				tl = tiers[tier.Free]
			}
			return PerMinute(tl.RequestsPerMinute, tl.Burst)
		},
		FailOpen: true,
	})

	return func(next http.Handler) http.Handler {
		limited := rl.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-RateLimit-Tier", GetUserTier(r.Context()).String())
			limited.ServeHTTP(w, r)
		})
	}
}

// localLimiter holds one token bucket per key. Idle buckets are swept on
// access instead of by a background goroutine.
type localLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const (
	sweepEvery = 5 * time.Minute
	bucketIdle = 10 * time.Minute
)

func newLocalLimiter() *localLimiter {
	return &localLimiter{buckets: make(map[string]*bucket), lastSweep: time.Now()}
}

func (l *localLimiter) allow(
	key string,
	limit redis_rate.Limit,
	now time.Time,
) (*redis_rate.Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("local rate limiter: invalid limit %d per %s", limit.Rate, limit.Period)
	}
	perSec := float64(limit.Rate) / limit.Period.Seconds()
	interval := time.Duration(float64(time.Second) / perSec)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > sweepEvery {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > bucketIdle {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(perSec), max(limit.Burst, 1))}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := &redis_rate.Result{
		Limit:      limit,
		ResetAfter: interval,
		RetryAfter: -1,
	}
	if b.lim.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	res.Remaining = max(int(b.lim.TokensAt(now)), 0)

	return res, nil
}
