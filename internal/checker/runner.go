// Package checker runs check cycles: every active tracker query is fetched,
// evaluated and its decision applied through the repository and notifier.
package checker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"course-tracker-backend/internal/metrics"
	"course-tracker-backend/internal/model"
	"course-tracker-backend/internal/notification"
	"course-tracker-backend/internal/scraper"
	"course-tracker-backend/internal/store"
	"course-tracker-backend/internal/tracker"
)

// ErrCycleRunning is returned when a cycle is requested while one is in progress.
var ErrCycleRunning = errors.New("check cycle already running")

// Fetcher obtains the current snapshot for a search.
type Fetcher interface {
	FetchCourse(ctx context.Context, params scraper.SearchParams) (tracker.Snapshot, error)
}

// Summary is the outcome of one cycle.
type Summary struct {
	Checked    int       `json:"checked"`
	Bookable   int       `json:"bookable"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (s Summary) String() string {
	return fmt.Sprintf("Checked %d tracker queries, %d courses are currently bookable", s.Checked, s.Bookable)
}

// Runner executes check cycles. At most one cycle runs at a time; a second
// caller gets ErrCycleRunning instead of overlapping reads and writes.
type Runner struct {
	repo     store.TrackerRepository
	fetcher  Fetcher
	engine   *tracker.Engine
	notifier notification.Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger

	running sync.Mutex

	mu    sync.RWMutex
	last  *Summary
	hooks []func(Summary)
}

// NewRunner wires a runner from its collaborators.
func NewRunner(repo store.TrackerRepository, fetcher Fetcher, engine *tracker.Engine, notifier notification.Notifier, m *metrics.Metrics, log *zap.Logger) *Runner {
	return &Runner{
		repo:     repo,
		fetcher:  fetcher,
		engine:   engine,
		notifier: notifier,
		metrics:  m,
		log:      log,
	}
}

// RunCycle evaluates every active tracker query once. A failing query is
// logged and skipped; only failing to list the queries aborts the cycle.
func (r *Runner) RunCycle(ctx context.Context) (Summary, error) {
	if !r.running.TryLock() {
		return Summary{}, ErrCycleRunning
	}
	defer r.running.Unlock()

	summary := Summary{StartedAt: time.Now().UTC()}
	r.log.Info("executing check cycle")

	queries, err := r.repo.ListActive(ctx)
	if err != nil {
		r.log.Error("failed to load tracker queries", zap.Error(err))
		return summary, err
	}

	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return r.interrupt(summary, err)
		}
		summary.Checked++
		r.metrics.QueriesChecked.Inc()

		outcome, err := r.checkQuery(ctx, q)
		if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
			return r.interrupt(summary, ctxErr)
		}
		if err != nil {
			summary.Failed++
			var qe *queryError
			reason := "unknown"
			if errors.As(err, &qe) {
				reason = qe.reason
			}
			r.metrics.QueriesFailed.WithLabelValues(reason).Inc()
			r.log.Error("tracker query skipped this cycle",
				zap.String("tracker_query_id", q.ID),
				zap.String("reason", reason),
				zap.Error(err))
			continue
		}
		if outcome == model.StatusAvailable {
			summary.Bookable++
		}
	}

	summary.FinishedAt = time.Now().UTC()
	r.metrics.CyclesTotal.Inc()
	r.metrics.CycleDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	r.metrics.CoursesBookable.Set(float64(summary.Bookable))

	r.mu.Lock()
	r.last = &summary
	r.mu.Unlock()
	r.cycleDone(summary)

	r.log.Info(summary.String(),
		zap.Int("checked", summary.Checked),
		zap.Int("bookable", summary.Bookable),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// interrupt ends a cycle whose context was cancelled or ran out of time.
// The partial summary is not recorded as the last one and nobody is notified.
func (r *Runner) interrupt(summary Summary, err error) (Summary, error) {
	summary.FinishedAt = time.Now().UTC()
	r.log.Warn("check cycle interrupted",
		zap.Int("checked", summary.Checked),
		zap.Error(err))
	r.cycleDone(summary)
	return summary, fmt.Errorf("check cycle interrupted: %w", err)
}

// OnCycleDone registers fn to run after every cycle that loaded its
// queries, interrupted ones included.
func (r *Runner) OnCycleDone(fn func(Summary)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

func (r *Runner) cycleDone(summary Summary) {
	r.mu.RLock()
	hooks := append([]func(Summary){}, r.hooks...)
	r.mu.RUnlock()
	for _, fn := range hooks {
		fn(summary)
	}
}

// LastSummary returns the summary of the most recent completed cycle.
func (r *Runner) LastSummary() (Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Summary{}, false
	}
	return *r.last, true
}

type queryError struct {
	reason string
	err    error
}

func (e *queryError) Error() string { return e.err.Error() }
func (e *queryError) Unwrap() error { return e.err }

func (r *Runner) checkQuery(ctx context.Context, q model.TrackerQuery) (model.AvailabilityStatus, error) {
	log := r.log.With(zap.String("tracker_query_id", q.ID))
	log.Debug("checking tracker query", zap.String("course_title", q.CourseTitle))

	snap, err := r.fetcher.FetchCourse(ctx, scraper.SearchParams{
		CourseTitle: q.CourseTitle,
		CenterID:    q.CenterID,
		DaytimeID:   q.DaytimeID,
		WeekdayID:   q.WeekdayID,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.StatusUnknown, ctxErr
		}
		return model.StatusUnknown, r.reportFetchError(ctx, log, err)
	}

	d := r.engine.Evaluate(q, snap)
	if d.Outcome == model.StatusAvailable {
		log.Info("course is currently bookable", zap.String("course_id", snap.CourseID))
	}

	if d.Identity != nil {
		if err := r.applyIdentity(ctx, q.ID, d.Identity); err != nil {
			return model.StatusUnknown, &queryError{reason: "persistence", err: err}
		}
		r.metrics.Transitions.WithLabelValues(d.Identity.Kind.String()).Inc()
		log.Info("identity transition", zap.Stringer("kind", d.Identity.Kind), zap.String("course_id", d.Identity.CourseID))
		if err := r.notify(ctx, d.Identity.Message); err != nil {
			return model.StatusUnknown, &queryError{reason: "notification", err: err}
		}
	}

	if d.Status != nil {
		if err := r.repo.ApplyStatusUpdate(ctx, q.ID, d.Status.To); err != nil {
			return model.StatusUnknown, &queryError{reason: "persistence", err: err}
		}
		r.metrics.Transitions.WithLabelValues("STATUS_" + d.Status.To.String()).Inc()
		log.Info("status has changed", zap.Stringer("from", d.Status.From), zap.Stringer("to", d.Status.To))
		if err := r.notify(ctx, d.Status.Message); err != nil {
			return model.StatusUnknown, &queryError{reason: "notification", err: err}
		}
	}

	return d.Outcome, nil
}

func (r *Runner) applyIdentity(ctx context.Context, id string, t *tracker.IdentityTransition) error {
	switch t.Kind {
	case tracker.TrackingStarted:
		return r.repo.ApplyIdentityUpdate(ctx, id, t.CourseID, t.Instructor, t.CourseDate)
	case tracker.TrackingEnded:
		return r.repo.ApplyDeactivation(ctx, id)
	}
	return fmt.Errorf("unexpected identity transition %s", t.Kind)
}

func (r *Runner) notify(ctx context.Context, message string) error {
	if err := r.notifier.Send(ctx, message); err != nil {
		r.metrics.NotificationsFailed.Inc()
		return fmt.Errorf("failed to send notification: %w", err)
	}
	r.metrics.NotificationsSent.Inc()
	return nil
}

// reportFetchError tells subscribers about a failed fetch and returns the
// classified error. The query state is left untouched.
func (r *Runner) reportFetchError(ctx context.Context, log *zap.Logger, err error) error {
	var (
		statusErr    *scraper.StatusError
		transportErr *scraper.TransportError
		message      string
		reason       string
	)
	switch {
	case errors.Is(err, scraper.ErrNoCourseFound):
		message = "No course found for the search criteria."
		reason = "no_course"
	case errors.As(err, &statusErr):
		message = fmt.Sprintf("There is an error. The API returned %d", statusErr.Code)
		reason = "status"
	case errors.As(err, &transportErr):
		message = fmt.Sprintf("There is an error. The API could not be reached: %v", transportErr.Err)
		reason = "transport"
	default:
		message = fmt.Sprintf("There is an error. %v", err)
		reason = "fetch"
	}

	log.Warn(message+", sending a notification", zap.Error(err))
	if notifyErr := r.notify(ctx, message); notifyErr != nil {
		log.Error("failed to report fetch error", zap.Error(notifyErr))
	}
	return &queryError{reason: reason, err: err}
}
