package availability

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type fakeLister struct {
	appts []model.Appointment
	err   error
	calls int
}

func (f *fakeLister) QueryByDoctor(_ context.Context, doctorID string, exclude []model.Status, from, to time.Time) ([]model.Appointment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Appointment
	for _, a := range f.appts {
		if a.DoctorID != doctorID || slices.Contains(exclude, a.Status) {
			continue
		}
		if a.StartTime.Before(to) && a.EndTime().After(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func TestOverlaps(t *testing.T) {
	a := Interval{Start: at(10, 0), End: at(10, 30)}
	if !Overlaps(a, Interval{Start: at(10, 15), End: at(10, 45)}) {
		t.Fatal("expected partial overlap")
	}
	if !Overlaps(a, Interval{Start: at(9, 0), End: at(11, 0)}) {
		t.Fatal("expected containment to overlap")
	}
	if Overlaps(a, Interval{Start: at(10, 30), End: at(11, 0)}) {
		t.Fatal("touching intervals must not overlap")
	}
	if Overlaps(Interval{Start: at(9, 30), End: at(10, 0)}, a) {
		t.Fatal("touching intervals must not overlap")
	}
}

func TestIsAvailable_Scenario(t *testing.T) {
	store := &fakeLister{appts: []model.Appointment{
		{ID: "a1", DoctorID: "doc-1", StartTime: at(10, 0), DurationMinutes: 30, Status: model.StatusScheduled},
		{ID: "a2", DoctorID: "doc-1", StartTime: at(12, 0), DurationMinutes: 30, Status: model.StatusCancelled},
		{ID: "a3", DoctorID: "doc-2", StartTime: at(10, 30), DurationMinutes: 30, Status: model.StatusConfirmed},
	}}
	c := NewChecker(store)
	ctx := context.Background()

	ok, err := c.IsAvailable(ctx, "doc-1", NewInterval(at(10, 15), 30*time.Minute), "")
	if err != nil || ok {
		t.Fatalf("expected 10:15 to conflict, got ok=%v err=%v", ok, err)
	}
	ok, err = c.IsAvailable(ctx, "doc-1", NewInterval(at(10, 30), 30*time.Minute), "")
	if err != nil || !ok {
		t.Fatalf("expected 10:30 to be free, got ok=%v err=%v", ok, err)
	}
	ok, err = c.IsAvailable(ctx, "doc-1", NewInterval(at(12, 0), 30*time.Minute), "")
	if err != nil || !ok {
		t.Fatalf("cancelled appointment must not block, got ok=%v err=%v", ok, err)
	}
	ok, err = c.IsAvailable(ctx, "doc-1", NewInterval(at(10, 0), 45*time.Minute), "a1")
	if err != nil || !ok {
		t.Fatalf("excluded appointment must not conflict with itself, got ok=%v err=%v", ok, err)
	}
}

func TestIsAvailable_StoreErrorIsNotAvailable(t *testing.T) {
	boom := errors.New("connection reset")
	c := NewChecker(&fakeLister{err: boom})

	ok, err := c.IsAvailable(context.Background(), "doc-1", NewInterval(at(10, 0), 30*time.Minute), "")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if ok {
		t.Fatal("a failed read must never report available")
	}
}

func TestSlots_Scenario(t *testing.T) {
	store := &fakeLister{appts: []model.Appointment{
		{ID: "a1", DoctorID: "doc-1", StartTime: at(10, 0), DurationMinutes: 30, Status: model.StatusScheduled},
	}}
	c := NewChecker(store)

	seq, err := c.Slots(context.Background(), "doc-1", at(13, 0), 30*time.Minute, DefaultSchedule())
	if err != nil {
		t.Fatalf("Slots failed: %v", err)
	}
	slots := slices.Collect(seq)
	if len(slots) != 15 {
		t.Fatalf("expected 15 slots, got %d", len(slots))
	}
	if slices.ContainsFunc(slots, func(s time.Time) bool { return s.Equal(at(10, 0)) }) {
		t.Fatal("10:00 must be excluded")
	}
	for _, want := range []time.Time{at(9, 30), at(10, 30)} {
		if !slices.ContainsFunc(slots, func(s time.Time) bool { return s.Equal(want) }) {
			t.Fatalf("expected boundary slot %s", want.Format("15:04"))
		}
	}
	if !slices.IsSortedFunc(slots, func(a, b time.Time) int { return a.Compare(b) }) {
		t.Fatal("slots must be ascending")
	}

	// Ranging twice must not hit the store again.
	_ = slices.Collect(seq)
	if store.calls != 1 {
		t.Fatalf("expected a single store read, got %d", store.calls)
	}
}

func TestSlots_DurationLongerThanWorkday(t *testing.T) {
	store := &fakeLister{}
	c := NewChecker(store)
	seq, err := c.Slots(context.Background(), "doc-1", day, 9*time.Hour, DefaultSchedule())
	if err != nil {
		t.Fatalf("Slots failed: %v", err)
	}
	if n := len(slices.Collect(seq)); n != 0 {
		t.Fatalf("expected empty sequence, got %d", n)
	}
	if store.calls != 0 {
		t.Fatal("expected no store read for an impossible duration")
	}
}
