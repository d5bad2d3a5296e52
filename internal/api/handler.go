package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"course-tracker-backend/internal/checker"
	"course-tracker-backend/internal/store"
)

// CycleRunner runs check cycles on demand and remembers the last outcome.
// OnCycleDone listeners also fire for scheduled cycles.
type CycleRunner interface {
	RunCycle(ctx context.Context) (checker.Summary, error)
	LastSummary() (checker.Summary, bool)
	OnCycleDone(fn func(checker.Summary))
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	runner  CycleRunner
	webpush *webpush.Options
	cache   *cache.Cache
	log     *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, runner CycleRunner, webpushOptions *webpush.Options, responseCache *cache.Cache, log *zap.Logger) *Handler {
	return &Handler{
		store:   s,
		runner:  runner,
		webpush: webpushOptions,
		cache:   responseCache,
		log:     log,
	}
}

// invalidate drops cached tracker listings after a write or a cycle.
func (h *Handler) invalidate() {
	if h.cache != nil {
		h.cache.Flush()
	}
}
