package storage

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

func appt(id, doctor string, start time.Time, mins int) model.Appointment {
	return model.Appointment{
		ID:              id,
		PatientID:       "patient-" + id,
		DoctorID:        doctor,
		StartTime:       start,
		DurationMinutes: mins,
		Type:            model.TypeRegular,
		Reason:          "checkup",
		Status:          model.StatusScheduled,
	}
}

func TestMemoryStore_RejectsOverlapPerDoctor(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ten := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	if _, err := s.Insert(ctx, appt("a1", "doc-1", ten, 30)); err != nil {
		t.Fatalf("insert a1: %v", err)
	}
	if _, err := s.Insert(ctx, appt("a2", "doc-1", ten.Add(15*time.Minute), 30)); !IsConflict(err) {
		t.Fatalf("expected overlap conflict, got %v", err)
	}
	if _, err := s.Insert(ctx, appt("a3", "doc-1", ten.Add(30*time.Minute), 30)); err != nil {
		t.Fatalf("back-to-back insert must succeed: %v", err)
	}
	if _, err := s.Insert(ctx, appt("a4", "doc-2", ten, 30)); err != nil {
		t.Fatalf("other doctor must not conflict: %v", err)
	}
}

func TestMemoryStore_CancelFreesInterval(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ten := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	if _, err := s.Insert(ctx, appt("a1", "doc-1", ten, 30)); err != nil {
		t.Fatalf("insert a1: %v", err)
	}
	cancelled := model.StatusCancelled
	updated, err := s.Update(ctx, "a1", model.Patch{Status: &cancelled}, ten)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != model.StatusCancelled || !updated.UpdatedAt.Equal(ten) {
		t.Fatalf("unexpected record after cancel: %+v", updated)
	}

	got, err := s.QueryByDoctor(ctx, "doc-1", []model.Status{model.StatusCancelled}, ten, ten.Add(time.Hour))
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no blocking appointments, got %v (%v)", got, err)
	}
	if _, err := s.Insert(ctx, appt("a2", "doc-1", ten, 30)); err != nil {
		t.Fatalf("slot must be bookable after cancel: %v", err)
	}
}

func TestMemoryStore_UpdateNotFoundAndSelfOverlap(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ten := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	if _, err := s.Update(ctx, "missing", model.Patch{}, ten); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := s.Insert(ctx, appt("a1", "doc-1", ten, 30)); err != nil {
		t.Fatalf("insert a1: %v", err)
	}
	dur := 60
	if _, err := s.Update(ctx, "a1", model.Patch{DurationMinutes: &dur}, ten); err != nil {
		t.Fatalf("extending an appointment over its own interval must succeed: %v", err)
	}
}

func TestMemoryStore_ListForUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a1", "a2", "a3"} {
		a := appt(id, "doc-1", base.Add(time.Duration(i)*time.Hour), 30)
		a.PatientID = "patient-x"
		if _, err := s.Insert(ctx, a); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	got, err := s.ListForUser(ctx, "patient-x", 2)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a3" || got[1].ID != "a2" {
		t.Fatalf("expected newest first [a3 a2], got %v", got)
	}
	byDoctor, _ := s.ListForUser(ctx, "doc-1", 0)
	if len(byDoctor) != 3 {
		t.Fatalf("expected doctor to see 3 appointments, got %d", len(byDoctor))
	}
}

func TestMemoryStore_RequestsPerPatient(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, r := range []model.AppointmentRequest{
		{ID: "r1", PatientID: "p1", DoctorID: "d1", Message: "first", CreatedAt: base},
		{ID: "r2", PatientID: "p2", DoctorID: "d1", Message: "other", CreatedAt: base.Add(time.Minute)},
		{ID: "r3", PatientID: "p1", DoctorID: "d2", Message: "second", CreatedAt: base.Add(2 * time.Minute)},
	} {
		if _, err := s.InsertRequest(ctx, r); err != nil {
			t.Fatalf("InsertRequest %d failed: %v", i, err)
		}
	}

	got, err := s.ListRequestsForPatient(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("ListRequestsForPatient failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "r3" || got[1].ID != "r1" {
		t.Fatalf("expected r3, r1; got %+v", got)
	}
	if got, _ := s.ListRequestsForPatient(ctx, "p1", 1); len(got) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(got))
	}
	if got, _ := s.QueryByDoctor(ctx, "d1", nil, base.Add(-time.Hour), base.Add(time.Hour)); len(got) != 0 {
		t.Fatalf("requests must not appear on the calendar, got %+v", got)
	}
}
