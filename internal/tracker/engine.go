// Package tracker decides, for one tracker query, what changed between the
// persisted state and a freshly fetched course snapshot.
package tracker

import (
	"fmt"
	"time"

	"course-tracker-backend/internal/model"
	"course-tracker-backend/internal/parse"
)

// Snapshot is the matching course occurrence as seen in one cycle.
type Snapshot struct {
	Found      bool
	CourseID   string
	Title      string
	Instructor string
	StartTime  string
	Bookable   bool
}

// IdentityKind tells whether tracking of an occurrence started or ended.
type IdentityKind int

const (
	TrackingStarted IdentityKind = iota + 1
	TrackingEnded
)

func (k IdentityKind) String() string {
	switch k {
	case TrackingStarted:
		return "TRACKING_STARTED"
	case TrackingEnded:
		return "TRACKING_ENDED"
	default:
		return "NONE"
	}
}

// IdentityTransition records a change of the occurrence a query refers to.
// For TrackingStarted the course fields are written to the query; for
// TrackingEnded the query is deactivated and the fields only feed Message.
type IdentityTransition struct {
	Kind       IdentityKind
	CourseID   string
	Instructor string
	CourseDate string
	Message    string
}

// StatusTransition records a change in bookability.
type StatusTransition struct {
	From    model.AvailabilityStatus
	To      model.AvailabilityStatus
	Message string
}

// Decision is everything a cycle must do for one query. Evaluate never
// performs the writes or sends itself.
type Decision struct {
	Identity *IdentityTransition
	Status   *StatusTransition
	// Outcome is the availability the query should be counted with.
	Outcome model.AvailabilityStatus
}

// Notifications returns the queued messages in send order.
func (d Decision) Notifications() []string {
	var msgs []string
	if d.Identity != nil {
		msgs = append(msgs, d.Identity.Message)
	}
	if d.Status != nil {
		msgs = append(msgs, d.Status.Message)
	}
	return msgs
}

// Changed reports whether any transition was produced.
func (d Decision) Changed() bool {
	return d.Identity != nil || d.Status != nil
}

// Apply returns q with the decision's writes applied, mirroring what the
// repository persists.
func (d Decision) Apply(q model.TrackerQuery) model.TrackerQuery {
	if d.Identity != nil {
		switch d.Identity.Kind {
		case TrackingStarted:
			courseID, instructor, date := d.Identity.CourseID, d.Identity.Instructor, d.Identity.CourseDate
			q.CourseID = &courseID
			q.Instructor = &instructor
			q.CourseDate = &date
		case TrackingEnded:
			q.ActiveStatus = false
		}
	}
	if d.Status != nil {
		q.AvailabilityStatus = d.Status.To
	}
	return q
}

// Engine evaluates snapshots against tracker queries. The location is only
// used to render course dates in messages.
type Engine struct {
	loc *time.Location
}

// NewEngine creates an engine rendering dates in loc (UTC when nil).
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{loc: loc}
}

// Evaluate compares the previous state of a query with a snapshot. Identity
// is resolved before status, and both can fire in the same cycle.
func (e *Engine) Evaluate(prev model.TrackerQuery, snap Snapshot) Decision {
	if !snap.Found {
		return Decision{Outcome: prev.AvailabilityStatus}
	}

	var d Decision
	desc := e.describe(snap.Title, snap.Instructor, snap.StartTime)

	switch {
	case prev.CourseID == nil:
		d.Identity = &IdentityTransition{
			Kind:       TrackingStarted,
			CourseID:   snap.CourseID,
			Instructor: snap.Instructor,
			CourseDate: snap.StartTime,
			Message:    "TRACKING STARTED: You are now tracking " + desc,
		}
	case *prev.CourseID != snap.CourseID:
		// The message describes the newly found occurrence, not the one
		// that stopped being tracked.
		d.Identity = &IdentityTransition{
			Kind:       TrackingEnded,
			CourseID:   snap.CourseID,
			Instructor: snap.Instructor,
			CourseDate: snap.StartTime,
			Message:    "TRACKING ENDED: You are no longer tracking " + desc,
		}
	}

	statusNew := model.StatusUnavailable
	if snap.Bookable {
		statusNew = model.StatusAvailable
	}

	if statusNew != prev.AvailabilityStatus {
		d.Status = &StatusTransition{
			From:    prev.AvailabilityStatus,
			To:      statusNew,
			Message: statusMessage(statusNew, desc),
		}
	}

	d.Outcome = statusNew
	return d
}

func (e *Engine) describe(title, instructor, start string) string {
	return fmt.Sprintf("%s by %s on %s", title, instructor, parse.CourseDate(start, e.loc))
}

func statusMessage(status model.AvailabilityStatus, desc string) string {
	switch status {
	case model.StatusAvailable:
		return fmt.Sprintf("YES: Course %s is now bookable", desc)
	case model.StatusUnavailable:
		return fmt.Sprintf("NO: Course %s is not bookable anymore!", desc)
	default:
		return fmt.Sprintf("WHAT!? The status of course %s is unknown.", desc)
	}
}
