package store

import (
	"context"
	"errors"

	"course-tracker-backend/internal/model"
)

var (
	// ErrTrackerQueryNotFound is returned when a targeted write or lookup matches no row.
	ErrTrackerQueryNotFound = errors.New("tracker query not found")
	// ErrSubscriptionNotFound is returned when no push subscription has the endpoint.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// TrackerRepository is the persistence boundary of the check cycle. Every
// Apply* call is a partial write touching only the named columns.
type TrackerRepository interface {
	ListActive(ctx context.Context) ([]model.TrackerQuery, error)
	ApplyIdentityUpdate(ctx context.Context, id, courseID, instructor, courseDate string) error
	ApplyDeactivation(ctx context.Context, id string) error
	ApplyStatusUpdate(ctx context.Context, id string, status model.AvailabilityStatus) error
}

// SubscriptionStore persists browser push subscriptions.
type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Store defines the interface for all database operations.
type Store interface {
	TrackerRepository
	SubscriptionStore

	CreateTrackerQuery(ctx context.Context, q *model.TrackerQuery) error
	GetTrackerQuery(ctx context.Context, id string) (*model.TrackerQuery, error)
	// ListTrackerQueries lists every query, or only those whose active
	// status equals *active when active is non-nil.
	ListTrackerQueries(ctx context.Context, active *bool) ([]model.TrackerQuery, error)
}
