package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coordinator := booking.NewCoordinator(storage.NewMemoryStore(), nil, nil, nil, logger, booking.Config{})
	mux := http.NewServeMux()
	NewBookingHandler(coordinator, logger).Register(mux)
	return auth.Middleware(nil)(mux)
}

func do(t *testing.T, h http.Handler, method, target, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if userID != "" {
		req.Header.Set(auth.UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createBody(start string, mins int) map[string]any {
	return map[string]any{
		"doctor_id":        "doc-1",
		"start_time":       start,
		"duration_minutes": mins,
		"appointment_type": "REGULAR",
		"reason":           "checkup",
	}
}

func TestCreateAndConflict(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/appointments", "patient-1", createBody("2026-03-02T10:00:00Z", 30))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var appt appointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &appt); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if appt.PatientID != "patient-1" || appt.Status != "scheduled" || appt.EndTime != "2026-03-02T10:30:00Z" {
		t.Fatalf("unexpected appointment: %+v", appt)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/appointments", "patient-2", createBody("2026-03-02T10:15:00Z", 30))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCreateRequiresIdentity(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/api/v1/appointments", "", createBody("2026-03-02T10:00:00Z", 30))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/api/v1/appointments", "patient-1", createBody("2026-03-02T10:00:00Z", 10))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/api/v1/appointments", "patient-1", createBody("tomorrow", 30))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad start_time, got %d", rec.Code)
	}
}

func TestAvailabilityAndSlots(t *testing.T) {
	h := newTestServer(t)
	if rec := do(t, h, http.MethodPost, "/api/v1/appointments", "patient-1", createBody("2026-03-02T10:00:00Z", 30)); rec.Code != http.StatusCreated {
		t.Fatalf("seed failed: %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/v1/availability?doctor_id=doc-1&start_time=2026-03-02T10:15:00Z&duration_minutes=30", "", nil)
	var avail availabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &avail); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("availability: %d %v", rec.Code, err)
	}
	if avail.Available {
		t.Fatal("expected 10:15 unavailable")
	}

	rec = do(t, h, http.MethodGet, "/api/v1/slots?doctor_id=doc-1&date=2026-03-02&duration_minutes=30", "", nil)
	var slots slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("slots: %d %v", rec.Code, err)
	}
	if len(slots.Slots) != 15 {
		t.Fatalf("expected 15 slots, got %d", len(slots.Slots))
	}
	if slots.Slots[0].StartTime != "2026-03-02T09:00:00Z" || slots.Slots[14].EndTime != "2026-03-02T17:00:00Z" {
		t.Fatalf("unexpected slot bounds: %+v .. %+v", slots.Slots[0], slots.Slots[14])
	}

	rec = do(t, h, http.MethodGet, "/api/v1/slots?doctor_id=doc-1&date=2026-03-02&workday_start=09:00&workday_end=11:00&slot_step_minutes=60", "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("slots override: %d %v", rec.Code, err)
	}
	if len(slots.Slots) != 1 || slots.Slots[0].StartTime != "2026-03-02T09:00:00Z" {
		t.Fatalf("expected only 09:00 with 60m step, got %+v", slots.Slots)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/slots?doctor_id=doc-1&date=2026-03-02&workday_start=00:00&workday_end=00:00", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty workday override, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/slots?doctor_id=doc-1&date=03/02/2026", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestUpdateCancelAndList(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/api/v1/appointments", "patient-1", createBody("2026-03-02T10:00:00Z", 30))
	var appt appointmentResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &appt)

	rec = do(t, h, http.MethodPost, "/api/v1/appointments/update", "patient-1", map[string]any{
		"appointment_id": appt.ID,
		"notes":          "fasting",
		"status":         "CONFIRMED",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated appointmentResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Notes != "fasting" || updated.Status != "confirmed" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	for i := 0; i < 2; i++ {
		rec = do(t, h, http.MethodPost, "/api/v1/appointments/cancel", "patient-1", map[string]any{"appointment_id": appt.ID})
		if rec.Code != http.StatusOK {
			t.Fatalf("cancel #%d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec = do(t, h, http.MethodPost, "/api/v1/appointments/update", "patient-1", map[string]any{
		"appointment_id": appt.ID,
		"status":         "confirmed",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for transition out of cancelled, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/appointments/cancel", "patient-1", map[string]any{"appointment_id": "nope"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/appointments", "doc-1", nil)
	var list struct {
		Items []appointmentResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("list: %d %v", rec.Code, err)
	}
	if len(list.Items) != 1 || list.Items[0].Status != "cancelled" {
		t.Fatalf("unexpected list: %+v", list.Items)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/appointments/detail?appointment_id="+appt.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("detail: expected 200, got %d", rec.Code)
	}
}

func TestAppointmentRequests(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/appointment-requests", "", map[string]any{"doctor_id": "doc-1", "message": "hi"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/appointment-requests", "patient-1", map[string]any{"doctor_id": "doc-1", "message": "persistent cough"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created appointmentRequestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.PatientID != "patient-1" || created.DoctorID != "doc-1" || created.Message != "persistent cough" {
		t.Fatalf("unexpected request: %+v", created)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/appointment-requests", "patient-1", map[string]any{"doctor_id": "doc-1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without message, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/appointment-requests", "patient-1", nil)
	var list struct {
		Items []appointmentRequestResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("list: %d %v", rec.Code, err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != created.ID {
		t.Fatalf("unexpected list: %+v", list.Items)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/appointments", "patient-1", nil)
	var appts struct {
		Items []appointmentResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &appts); err != nil || len(appts.Items) != 0 {
		t.Fatalf("a request must not create an appointment, got %+v (%v)", appts.Items, err)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodDelete, "/api/v1/appointments", "patient-1", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
