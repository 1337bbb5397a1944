package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MinDurationMinutes     = 15
	MaxDurationMinutes     = 120
	DefaultDurationMinutes = 30
)

type Type string

const (
	TypeRegular      Type = "regular"
	TypeFollowUp     Type = "follow_up"
	TypeUrgent       Type = "urgent"
	TypeConsultation Type = "consultation"
)

func (t Type) Valid() bool {
	switch t {
	case TypeRegular, TypeFollowUp, TypeUrgent, TypeConsultation:
		return true
	}
	return false
}

// ParseType accepts the stored lowercase form as well as the upper-case
// names clients tend to send ("FOLLOW_UP").
func ParseType(raw string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown appointment type %q", raw)
	}
	return t, nil
}

type Appointment struct {
	ID              string
	PatientID       string
	DoctorID        string
	StartTime       time.Time
	DurationMinutes int
	Type            Type
	Reason          string
	Notes           string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

func (a Appointment) EndTime() time.Time {
	return a.StartTime.Add(a.Duration())
}

// Blocking reports whether the appointment occupies the doctor's time.
func (a Appointment) Blocking() bool {
	return a.Status != StatusCancelled
}

var ErrDurationOutOfRange = errors.New("duration_minutes must be between 15 and 120")

func ValidateDuration(mins int) error {
	if mins < MinDurationMinutes || mins > MaxDurationMinutes {
		return ErrDurationOutOfRange
	}
	return nil
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	StartTime       *time.Time
	DurationMinutes *int
	Type            *Type
	Reason          *string
	Notes           *string
	Status          *Status
}

func (p Patch) Empty() bool {
	return p.StartTime == nil && p.DurationMinutes == nil && p.Type == nil &&
		p.Reason == nil && p.Notes == nil && p.Status == nil
}

// Reschedules reports whether applying the patch to a moves its interval.
func (p Patch) Reschedules(a Appointment) bool {
	if p.StartTime != nil && !p.StartTime.Equal(a.StartTime) {
		return true
	}
	if p.DurationMinutes != nil && *p.DurationMinutes != a.DurationMinutes {
		return true
	}
	return false
}

func (p Patch) Apply(a Appointment) Appointment {
	if p.StartTime != nil {
		a.StartTime = *p.StartTime
	}
	if p.DurationMinutes != nil {
		a.DurationMinutes = *p.DurationMinutes
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Reason != nil {
		a.Reason = *p.Reason
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	return a
}
