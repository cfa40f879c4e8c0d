// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/wealthsupernova/supernova/internal/core"
	"github.com/wealthsupernova/supernova/internal/metrics"
)

const defaultPruneGrace = 24 * time.Hour

var startedAt = time.Now()

// TokenPruner deletes refresh tokens that expired before the grace period.
type TokenPruner interface {
	PruneExpired(ctx context.Context, grace time.Duration) (int64, error)
}

// HandlerConfig wires the operator endpoints. Nil fields switch the matching
// section off.
type HandlerConfig struct {
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	RedisPing  func(ctx context.Context) error
	DBPing     func(ctx context.Context) error
	Content    metrics.Source
	Pruner     TokenPruner
}

type Handler struct {
	cfg HandlerConfig
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/stats", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.GetSystemStats)
		r.Get("/db", h.GetDatabaseStats)
		r.Get("/redis", h.GetRedisStats)
		r.Get("/runtime", h.GetRuntimeStats)
		r.Get("/content", h.GetContentStats)
	})

	r.With(authenticator, adminOnly).Post("/admin/maintenance/prune-tokens", h.PruneTokens)
}

// GetSystemStats probes the stores and loads the content counts in
// parallel. A failed probe marks that store unhealthy instead of failing
// the request.
func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatsResponse{
		Database: DatabaseStatus{Healthy: true, Stats: h.dbPool()},
		Redis:    RedisStatus{Healthy: true, Stats: h.redisPool()},
		Runtime:  runtimeStats(),
	}

	g, ctx := errgroup.WithContext(r.Context())
	if h.cfg.DBPing != nil {
		g.Go(func() error {
			resp.Database.Healthy = h.cfg.DBPing(ctx) == nil
			return nil
		})
	}
	if h.cfg.RedisPing != nil {
		g.Go(func() error {
			resp.Redis.Healthy = h.cfg.RedisPing(ctx) == nil
			return nil
		})
	}
	if h.cfg.Content != nil {
		g.Go(func() error {
			c, err := h.contentStats(ctx)
			resp.Content = c
			return err
		})
	}

	if err := g.Wait(); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.dbPool())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, h.redisPool())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, runtimeStats())
}

func (h *Handler) GetContentStats(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Content == nil {
		core.NotFound(w, "content stats")
		return
	}

	c, err := h.contentStats(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, c)
}

func (h *Handler) PruneTokens(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Pruner == nil {
		core.NotFound(w, "token pruning")
		return
	}

	grace := defaultPruneGrace
	if v := r.URL.Query().Get("grace"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			core.BadRequest(w, "grace must be a non-negative duration")
			return
		}
		grace = d
	}

	n, err := h.cfg.Pruner.PruneExpired(r.Context(), grace)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, PruneResponse{Deleted: n})
}

func (h *Handler) contentStats(ctx context.Context) (*ContentStats, error) {
	snap, err := h.cfg.Content.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &ContentStats{
		ArticlesByTier:  snap.ArticlesByTier,
		ActiveByTier:    snap.ActiveByTier,
		ConfirmedList:   snap.SubscribersByStatus[true],
		UnconfirmedList: snap.SubscribersByStatus[false],
	}, nil
}

func (h *Handler) dbPool() *DBPoolStats {
	if h.cfg.DBStats == nil {
		return nil
	}
	s := h.cfg.DBStats()
	return &DBPoolStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration.String(),
		MaxIdleClosed:      s.MaxIdleClosed,
		MaxLifetimeClosed:  s.MaxLifetimeClosed,
	}
}

func (h *Handler) redisPool() *RedisPoolStats {
	if h.cfg.RedisStats == nil {
		return nil
	}
	s := h.cfg.RedisStats()
	return &RedisPoolStats{
		Hits:       s.Hits,
		Misses:     s.Misses,
		Timeouts:   s.Timeouts,
		TotalConns: s.TotalConns,
		IdleConns:  s.IdleConns,
	}
}

func runtimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		HeapAlloc:    m.HeapAlloc,
		Sys:          m.Sys,
		NumGC:        m.NumGC,
		Uptime:       time.Since(startedAt).Round(time.Second).String(),
	}
}
