package model

import (
	"database/sql/driver"
	"fmt"
)

// AvailabilityStatus is the last known bookability of a tracked course.
type AvailabilityStatus int

const (
	StatusUnknown AvailabilityStatus = iota
	StatusAvailable
	StatusUnavailable
)

func (s AvailabilityStatus) String() string {
	switch s {
	case StatusAvailable:
		return "Available"
	case StatusUnavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

// ParseAvailabilityStatus maps the persisted text form back to the enum.
func ParseAvailabilityStatus(raw string) (AvailabilityStatus, error) {
	switch raw {
	case "Unknown", "":
		return StatusUnknown, nil
	case "Available":
		return StatusAvailable, nil
	case "Unavailable":
		return StatusUnavailable, nil
	}
	return StatusUnknown, fmt.Errorf("unknown availability status %q", raw)
}

// Value stores the status as text.
func (s AvailabilityStatus) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan reads the text form written by Value.
func (s *AvailabilityStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		raw = ""
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into AvailabilityStatus", src)
	}

	parsed, err := ParseAvailabilityStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalText lets the status appear as a string in JSON responses.
func (s AvailabilityStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AvailabilityStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseAvailabilityStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
