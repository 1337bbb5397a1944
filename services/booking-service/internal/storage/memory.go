package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

// MemoryStore keeps appointments in process memory. It enforces the same
// per-doctor no-overlap rule as the Postgres exclusion constraint, which
// makes it usable for local runs and tests. Data is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	appts    map[string]model.Appointment
	requests []model.AppointmentRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{appts: map[string]model.Appointment{}}
}

func (s *MemoryStore) Insert(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.appts[appt.ID]; exists {
		return model.Appointment{}, fmt.Errorf("appointment %s already exists", appt.ID)
	}
	if s.overlapsLocked(appt) {
		return model.Appointment{}, ErrOverlap
	}
	s.appts[appt.ID] = appt
	return appt, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch model.Patch, updatedAt time.Time) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	next := patch.Apply(current)
	next.UpdatedAt = updatedAt
	if s.overlapsLocked(next) {
		return model.Appointment{}, ErrOverlap
	}
	s.appts[id] = next
	return next, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return appt, nil
}

func (s *MemoryStore) QueryByDoctor(_ context.Context, doctorID string, excludeStatuses []model.Status, from, to time.Time) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Appointment
	for _, a := range s.appts {
		if a.DoctorID != doctorID || slices.Contains(excludeStatuses, a.Status) {
			continue
		}
		if a.StartTime.Before(to) && a.EndTime().After(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListForUser(_ context.Context, userID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	var out []model.Appointment
	for _, a := range s.appts {
		if a.PatientID == userID || a.DoctorID == userID {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Appointment) int { return b.StartTime.Compare(a.StartTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) InsertRequest(_ context.Context, req model.AppointmentRequest) (model.AppointmentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return req, nil
}

func (s *MemoryStore) ListRequestsForPatient(_ context.Context, patientID string, limit int) ([]model.AppointmentRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AppointmentRequest
	for i := len(s.requests) - 1; i >= 0 && len(out) < limit; i-- {
		if s.requests[i].PatientID == patientID {
			out = append(out, s.requests[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) overlapsLocked(candidate model.Appointment) bool {
	if !candidate.Blocking() {
		return false
	}
	for id, a := range s.appts {
		if id == candidate.ID || a.DoctorID != candidate.DoctorID || !a.Blocking() {
			continue
		}
		if candidate.StartTime.Before(a.EndTime()) && a.StartTime.Before(candidate.EndTime()) {
			return true
		}
	}
	return false
}
