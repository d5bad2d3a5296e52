package checker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"course-tracker-backend/internal/metrics"
	"course-tracker-backend/internal/model"
	"course-tracker-backend/internal/scraper"
	"course-tracker-backend/internal/store"
	"course-tracker-backend/internal/tracker"
)

// memRepo is an in-memory TrackerRepository.
type memRepo struct {
	mu        sync.Mutex
	rows      map[string]*model.TrackerQuery
	order     []string
	failWrite map[string]error
}

func newMemRepo(queries ...model.TrackerQuery) *memRepo {
	r := &memRepo{rows: map[string]*model.TrackerQuery{}, failWrite: map[string]error{}}
	for i := range queries {
		q := queries[i]
		r.rows[q.ID] = &q
		r.order = append(r.order, q.ID)
	}
	return r
}

func (r *memRepo) ListActive(ctx context.Context) ([]model.TrackerQuery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.TrackerQuery
	for _, id := range r.order {
		if q := r.rows[id]; q.ActiveStatus {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (r *memRepo) write(id string, fn func(q *model.TrackerQuery)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failWrite[id]; err != nil {
		return err
	}
	q, ok := r.rows[id]
	if !ok {
		return store.ErrTrackerQueryNotFound
	}
	fn(q)
	return nil
}

func (r *memRepo) ApplyIdentityUpdate(ctx context.Context, id, courseID, instructor, courseDate string) error {
	return r.write(id, func(q *model.TrackerQuery) {
		q.CourseID, q.Instructor, q.CourseDate = &courseID, &instructor, &courseDate
	})
}

func (r *memRepo) ApplyDeactivation(ctx context.Context, id string) error {
	return r.write(id, func(q *model.TrackerQuery) { q.ActiveStatus = false })
}

func (r *memRepo) ApplyStatusUpdate(ctx context.Context, id string, status model.AvailabilityStatus) error {
	return r.write(id, func(q *model.TrackerQuery) { q.AvailabilityStatus = status })
}

func (r *memRepo) get(id string) model.TrackerQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

type fetchResult struct {
	snap tracker.Snapshot
	err  error
}

// fakeFetcher answers by course title.
type fakeFetcher struct {
	results map[string]fetchResult
	calls   int
	started chan struct{}
	block   chan struct{}

	// cancel is called when cancelOn is fetched, as a caller going away would.
	cancel   context.CancelFunc
	cancelOn string
}

func (f *fakeFetcher) FetchCourse(ctx context.Context, params scraper.SearchParams) (tracker.Snapshot, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return tracker.Snapshot{}, &scraper.TransportError{Err: err}
	}
	if f.cancel != nil && params.CourseTitle == f.cancelOn {
		f.cancel()
		return tracker.Snapshot{}, &scraper.TransportError{Err: context.Canceled}
	}
	if f.block != nil {
		f.started <- struct{}{}
		<-f.block
	}
	res, ok := f.results[params.CourseTitle]
	if !ok {
		return tracker.Snapshot{}, scraper.ErrNoCourseFound
	}
	return res.snap, res.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Send(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.err
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = nil
}

func newRunner(repo *memRepo, fetcher *fakeFetcher, notifier *recordingNotifier) *Runner {
	return NewRunner(repo, fetcher, tracker.NewEngine(nil), notifier, metrics.New(prometheus.NewRegistry()), zap.NewNop())
}

func strPtr(s string) *string { return &s }

func query(id, title string) model.TrackerQuery {
	return model.NewTrackerQuery(id, title, 23, 0, 5)
}

func tracked(id, title, courseID string, status model.AvailabilityStatus) model.TrackerQuery {
	q := query(id, title)
	q.CourseID = strPtr(courseID)
	q.Instructor = strPtr("Anna")
	q.CourseDate = strPtr("2024-03-08T18:15:00")
	q.AvailabilityStatus = status
	return q
}

func found(courseID string, bookable bool) fetchResult {
	return fetchResult{snap: tracker.Snapshot{
		Found:      true,
		CourseID:   courseID,
		Title:      "BODYPUMP",
		Instructor: "Anna",
		StartTime:  "2024-03-08T18:15:00",
		Bookable:   bookable,
	}}
}

const desc = "BODYPUMP by Anna on Fri 08.03.2024 18:15"

func TestRunCycle_FirstSighting(t *testing.T) {
	repo := newMemRepo(query("q-1", "BODYPUMP"))
	notifier := &recordingNotifier{}
	runner := newRunner(repo, &fakeFetcher{results: map[string]fetchResult{"BODYPUMP": found("C1", false)}}, notifier)

	summary, err := runner.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 0, summary.Bookable)
	assert.Equal(t, []string{
		"TRACKING STARTED: You are now tracking " + desc,
		"NO: Course " + desc + " is not bookable anymore!",
	}, notifier.messages)

	q := repo.get("q-1")
	require.NotNil(t, q.CourseID)
	assert.Equal(t, "C1", *q.CourseID)
	assert.Equal(t, model.StatusUnavailable, q.AvailabilityStatus)
	assert.True(t, q.ActiveStatus)
}

func TestRunCycle_BecomesBookable(t *testing.T) {
	repo := newMemRepo(tracked("q-1", "BODYPUMP", "C1", model.StatusUnavailable))
	notifier := &recordingNotifier{}
	runner := newRunner(repo, &fakeFetcher{results: map[string]fetchResult{"BODYPUMP": found("C1", true)}}, notifier)

	summary, err := runner.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Bookable)
	assert.Equal(t, "Checked 1 tracker queries, 1 courses are currently bookable", summary.String())
	assert.Equal(t, []string{"YES: Course " + desc + " is now bookable"}, notifier.messages)
	assert.Equal(t, model.StatusAvailable, repo.get("q-1").AvailabilityStatus)
}

func TestRunCycle_TrackingEnded(t *testing.T) {
	repo := newMemRepo(tracked("q-1", "BODYPUMP", "C1", model.StatusAvailable))
	notifier := &recordingNotifier{}
	fetcher := &fakeFetcher{results: map[string]fetchResult{"BODYPUMP": found("C2", true)}}
	runner := newRunner(repo, fetcher, notifier)

	_, err := runner.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"TRACKING ENDED: You are no longer tracking " + desc}, notifier.messages)
	q := repo.get("q-1")
	assert.False(t, q.ActiveStatus)
	assert.Equal(t, model.StatusAvailable, q.AvailabilityStatus)

	// A deactivated query is never evaluated again.
	notifier.reset()
	summary, err := runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Checked)
	assert.Equal(t, 1, fetcher.calls)
	assert.Empty(t, notifier.messages)
}

func TestRunCycle_NoCourseFound(t *testing.T) {
	before := tracked("q-1", "GONE", "C1", model.StatusUnavailable)
	repo := newMemRepo(before)
	notifier := &recordingNotifier{}
	runner := newRunner(repo, &fakeFetcher{}, notifier)

	summary, err := runner.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"No course found for the search criteria."}, notifier.messages)
	assert.Equal(t, before, repo.get("q-1"))
}

func TestRunCycle_UnchangedIsSilent(t *testing.T) {
	before := tracked("q-1", "BODYPUMP", "C1", model.StatusUnavailable)
	repo := newMemRepo(before)
	notifier := &recordingNotifier{}
	runner := newRunner(repo, &fakeFetcher{results: map[string]fetchResult{"BODYPUMP": found("C1", false)}}, notifier)

	summary, err := runner.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 0, summary.Bookable)
	assert.Empty(t, notifier.messages)
	assert.Equal(t, before, repo.get("q-1"))
}

func TestRunCycle_FetchErrorsAreReported(t *testing.T) {
	repo := newMemRepo(query("q-1", "DOWN"), query("q-2", "OFFLINE"), query("q-3", "BODYPUMP"))
	notifier := &recordingNotifier{}
	runner := newRunner(repo, &fakeFetcher{results: map[string]fetchResult{
		"DOWN":     {err: &scraper.StatusError{Code: 503}},
		"OFFLINE":  {err: &scraper.TransportError{Err: errors.New("connection refused")}},
		"BODYPUMP": found("C1", true),
	}}, notifier)

	summary, err := runner.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Checked: 3, Bookable: 1, Failed: 2}, Summary{Checked: summary.Checked, Bookable: summary.Bookable, Failed: summary.Failed})
	assert.Equal(t, []string{
		"There is an error. The API returned 503",
		"There is an error. The API could not be reached: connection refused",
		"TRACKING STARTED: You are now tracking " + desc,
		"YES: Course " + desc + " is now bookable",
	}, notifier.messages)
	assert.Equal(t, model.StatusUnknown, repo.get("q-1").AvailabilityStatus)
	assert.Equal(t, model.StatusAvailable, repo.get("q-3").AvailabilityStatus)
}

func TestRunCycle_PersistenceFailureIsIsolated(t *testing.T) {
	repo := newMemRepo(query("q-1", "BODYPUMP"), query("q-2", "YOGA"))
	repo.failWrite["q-1"] = errors.New("disk full")
	notifier := &recordingNotifier{}
	runner := newRunner(repo, &fakeFetcher{results: map[string]fetchResult{
		"BODYPUMP": found("C1", true),
		"YOGA":     found("C7", true),
	}}, notifier)

	summary, err := runner.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Bookable)
	assert.Len(t, notifier.messages, 2, "only the healthy query notifies")
	assert.Nil(t, repo.get("q-1").CourseID)
	assert.NotNil(t, repo.get("q-2").CourseID)
}

func TestRunCycle_NotificationFailureStopsQuery(t *testing.T) {
	repo := newMemRepo(query("q-1", "BODYPUMP"))
	notifier := &recordingNotifier{err: errors.New("channel closed")}
	runner := newRunner(repo, &fakeFetcher{results: map[string]fetchResult{"BODYPUMP": found("C1", true)}}, notifier)

	summary, err := runner.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, notifier.messages, 1, "status step must not run after the identity notification failed")
	assert.Equal(t, model.StatusUnknown, repo.get("q-1").AvailabilityStatus)
}

func TestRunCycle_SecondCycleIsFixedPoint(t *testing.T) {
	repo := newMemRepo(query("q-1", "BODYPUMP"))
	notifier := &recordingNotifier{}
	runner := newRunner(repo, &fakeFetcher{results: map[string]fetchResult{"BODYPUMP": found("C1", true)}}, notifier)

	_, err := runner.RunCycle(context.Background())
	require.NoError(t, err)
	afterFirst := repo.get("q-1")
	notifier.reset()

	summary, err := runner.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Bookable)
	assert.Empty(t, notifier.messages)
	assert.Equal(t, afterFirst, repo.get("q-1"))

	last, ok := runner.LastSummary()
	require.True(t, ok)
	assert.Equal(t, summary, last)
}

func TestRunCycle_RejectsOverlap(t *testing.T) {
	repo := newMemRepo(query("q-1", "BODYPUMP"))
	fetcher := &fakeFetcher{
		results: map[string]fetchResult{"BODYPUMP": found("C1", true)},
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	runner := newRunner(repo, fetcher, &recordingNotifier{})

	done := make(chan error, 1)
	go func() {
		_, err := runner.RunCycle(context.Background())
		done <- err
	}()

	<-fetcher.started
	_, err := runner.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleRunning)

	close(fetcher.block)
	assert.NoError(t, <-done)
}

func TestRunCycle_StopsWhenContextEnds(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()

	testCases := []struct {
		name    string
		ctx     context.Context
		wantErr error
	}{
		{name: "Cancelled", ctx: cancelled, wantErr: context.Canceled},
		{name: "Deadline exceeded", ctx: expired, wantErr: context.DeadlineExceeded},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemRepo(query("q-1", "BODYPUMP"), query("q-2", "YOGA"), query("q-3", "PILATES"))
			notifier := &recordingNotifier{}
			runner := newRunner(repo, &fakeFetcher{results: map[string]fetchResult{"BODYPUMP": found("C1", true)}}, notifier)

			_, err := runner.RunCycle(tc.ctx)

			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, notifier.messages)
			_, ok := runner.LastSummary()
			assert.False(t, ok, "an interrupted cycle is not recorded")
			assert.Equal(t, model.StatusUnknown, repo.get("q-1").AvailabilityStatus)
		})
	}
}

func TestRunCycle_CancelledMidCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := newMemRepo(query("q-1", "BODYPUMP"), query("q-2", "YOGA"), query("q-3", "PILATES"))
	notifier := &recordingNotifier{}
	fetcher := &fakeFetcher{
		results:  map[string]fetchResult{"BODYPUMP": found("C1", true), "PILATES": found("C9", true)},
		cancel:   cancel,
		cancelOn: "YOGA",
	}
	runner := newRunner(repo, fetcher, notifier)

	var hooked []Summary
	runner.OnCycleDone(func(s Summary) { hooked = append(hooked, s) })

	summary, err := runner.RunCycle(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 2, fetcher.calls, "no query is fetched after the cancellation")
	assert.Equal(t, []string{
		"TRACKING STARTED: You are now tracking " + desc,
		"YES: Course " + desc + " is now bookable",
	}, notifier.messages)
	assert.Nil(t, repo.get("q-3").CourseID)
	assert.Len(t, hooked, 1, "writes of the first query still reach listeners")
}

func TestRunCycle_NotifiesListeners(t *testing.T) {
	repo := newMemRepo(query("q-1", "BODYPUMP"))
	runner := newRunner(repo, &fakeFetcher{results: map[string]fetchResult{"BODYPUMP": found("C1", true)}}, &recordingNotifier{})

	var hooked []Summary
	runner.OnCycleDone(func(s Summary) { hooked = append(hooked, s) })

	summary, err := runner.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, hooked, 1)
	assert.Equal(t, summary, hooked[0])
}
