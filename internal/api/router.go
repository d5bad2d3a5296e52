package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"course-tracker-backend/config"
	"course-tracker-backend/internal/checker"
	"course-tracker-backend/internal/mw"
	"course-tracker-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, s store.Store, runner CycleRunner, webpushOptions *webpush.Options, gatherer prometheus.Gatherer, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	handler := NewHandler(s, runner, webpushOptions, cacheStore, log)
	runner.OnCycleDone(func(checker.Summary) { handler.invalidate() })

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/trackers", caching, handler.ListTrackers)
		api.POST("/trackers", handler.CreateTracker)
		api.GET("/trackers/:id", caching, handler.GetTracker)

		api.POST("/cycles", handler.RunCycle)
		api.GET("/cycles/last", handler.GetLastCycle)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
