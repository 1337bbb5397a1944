package availability

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

// AppointmentLister is the read side of the appointment store. Implementations
// return appointments of doctorID whose status is not in excludeStatuses and
// whose interval intersects [from, to), in no particular order.
type AppointmentLister interface {
	QueryByDoctor(ctx context.Context, doctorID string, excludeStatuses []model.Status, from, to time.Time) ([]model.Appointment, error)
}

var blockingOnly = []model.Status{model.StatusCancelled}

// Checker answers conflict questions against fresh store reads; it keeps no
// state between calls.
type Checker struct {
	store AppointmentLister
}

func NewChecker(store AppointmentLister) *Checker {
	return &Checker{store: store}
}

// IsAvailable reports whether candidate is free of every non-cancelled
// appointment of the doctor other than excludeID. A store error is returned
// as-is (wrapped) and the boolean must be ignored.
func (c *Checker) IsAvailable(ctx context.Context, doctorID string, candidate Interval, excludeID string) (bool, error) {
	busy, err := c.Busy(ctx, doctorID, candidate, excludeID)
	if err != nil {
		return false, err
	}
	return !overlapsAny(candidate, busy), nil
}

// Busy returns the occupied intervals of the doctor that intersect window.
func (c *Checker) Busy(ctx context.Context, doctorID string, window Interval, excludeID string) ([]Interval, error) {
	appts, err := c.store.QueryByDoctor(ctx, doctorID, blockingOnly, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("query appointments for doctor %s: %w", doctorID, err)
	}
	busy := make([]Interval, 0, len(appts))
	for _, a := range appts {
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if !a.Blocking() {
			continue
		}
		busy = append(busy, NewInterval(a.StartTime, a.Duration()))
	}
	return busy, nil
}

// Slots reads the doctor's appointments for the working window of date once
// and returns the lazy sequence of free start times.
func (c *Checker) Slots(ctx context.Context, doctorID string, date time.Time, duration time.Duration, schedule Schedule) (iter.Seq[time.Time], error) {
	schedule = schedule.WithDefaults()
	window := schedule.Window(date)
	if duration <= 0 || duration > window.Duration() {
		return AvailableSlots(window, 0, schedule.Step, nil), nil
	}
	busy, err := c.Busy(ctx, doctorID, window, "")
	if err != nil {
		return nil, err
	}
	return AvailableSlots(window, duration, schedule.Step, busy), nil
}
