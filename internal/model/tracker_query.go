package model

import "time"

// TrackerEntityName is the discriminator shared by all tracker query rows.
const TrackerEntityName = "check-query"

// TrackerQuery is one user-configured watch on a course search.
// CourseID, Instructor and CourseDate stay nil until the first successful check.
type TrackerQuery struct {
	ID                 string             `gorm:"primaryKey;size:64" json:"id"`
	EntityName         string             `gorm:"size:32;not null;index:idx_tracker_entity_active,priority:1" json:"-"`
	CourseTitle        string             `gorm:"size:256;not null" json:"course_title"`
	CenterID           int                `gorm:"not null" json:"center_id"`
	DaytimeID          int                `gorm:"not null" json:"daytime_id"`
	WeekdayID          int                `gorm:"not null" json:"weekday_id"`
	ActiveStatus       bool               `gorm:"not null;index:idx_tracker_entity_active,priority:2" json:"active_status"`
	CourseID           *string            `gorm:"size:128" json:"course_id"`
	Instructor         *string            `gorm:"size:256" json:"instructor"`
	CourseDate         *string            `gorm:"size:64" json:"course_date"`
	AvailabilityStatus AvailabilityStatus `gorm:"type:varchar(16);not null" json:"availability_status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// NewTrackerQuery returns a freshly armed query for the given search.
func NewTrackerQuery(id, courseTitle string, centerID, daytimeID, weekdayID int) TrackerQuery {
	return TrackerQuery{
		ID:                 id,
		EntityName:         TrackerEntityName,
		CourseTitle:        courseTitle,
		CenterID:           centerID,
		DaytimeID:          daytimeID,
		WeekdayID:          weekdayID,
		ActiveStatus:       true,
		AvailabilityStatus: StatusUnknown,
	}
}

// Tracking reports whether an occurrence has been identified for this query.
func (q TrackerQuery) Tracking() bool {
	return q.CourseID != nil
}
