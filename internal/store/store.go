package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-tracker-backend/internal/model"
)

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// ListActive returns all tracker queries that are still being evaluated.
func (s *gormStore) ListActive(ctx context.Context) ([]model.TrackerQuery, error) {
	var queries []model.TrackerQuery
	err := s.db.WithContext(ctx).
		Where("entity_name = ? AND active_status <> ?", model.TrackerEntityName, false).
		Order("created_at").
		Find(&queries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active tracker queries: %w", err)
	}
	return queries, nil
}

// ApplyIdentityUpdate records the occurrence a query has started tracking.
func (s *gormStore) ApplyIdentityUpdate(ctx context.Context, id, courseID, instructor, courseDate string) error {
	return s.updateFields(ctx, id, map[string]any{
		"course_id":   courseID,
		"instructor":  instructor,
		"course_date": courseDate,
	})
}

// ApplyDeactivation permanently removes a query from future cycles.
func (s *gormStore) ApplyDeactivation(ctx context.Context, id string) error {
	return s.updateFields(ctx, id, map[string]any{"active_status": false})
}

// ApplyStatusUpdate stores the latest availability of a query.
func (s *gormStore) ApplyStatusUpdate(ctx context.Context, id string, status model.AvailabilityStatus) error {
	return s.updateFields(ctx, id, map[string]any{"availability_status": status})
}

func (s *gormStore) updateFields(ctx context.Context, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&model.TrackerQuery{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update tracker query %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update tracker query %s: %w", id, ErrTrackerQueryNotFound)
	}
	return nil
}

// CreateTrackerQuery inserts a new query.
func (s *gormStore) CreateTrackerQuery(ctx context.Context, q *model.TrackerQuery) error {
	if q.EntityName == "" {
		q.EntityName = model.TrackerEntityName
	}
	if err := s.db.WithContext(ctx).Create(q).Error; err != nil {
		return fmt.Errorf("failed to create tracker query: %w", err)
	}
	return nil
}

// GetTrackerQuery loads a single query by id.
func (s *gormStore) GetTrackerQuery(ctx context.Context, id string) (*model.TrackerQuery, error) {
	var q model.TrackerQuery
	err := s.db.WithContext(ctx).
		Where("entity_name = ?", model.TrackerEntityName).
		First(&q, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackerQueryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracker query %s: %w", id, err)
	}
	return &q, nil
}

// ListTrackerQueries lists queries, optionally filtered by active status.
func (s *gormStore) ListTrackerQueries(ctx context.Context, active *bool) ([]model.TrackerQuery, error) {
	tx := s.db.WithContext(ctx).Where("entity_name = ?", model.TrackerEntityName)
	if active != nil {
		tx = tx.Where("active_status = ?", *active)
	}

	var queries []model.TrackerQuery
	if err := tx.Order("created_at").Find(&queries).Error; err != nil {
		return nil, fmt.Errorf("failed to list tracker queries: %w", err)
	}
	return queries, nil
}

// ListSubscriptions returns every stored push subscription.
func (s *gormStore) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// GetSubscription loads the subscription for an endpoint.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// UpsertSubscription creates a subscription or refreshes its keys.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// DeleteSubscription removes a subscription; deleting a missing one is not an error.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}
