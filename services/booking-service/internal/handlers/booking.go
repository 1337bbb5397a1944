package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type BookingHandler struct {
	coordinator *booking.Coordinator
	logger      *slog.Logger
}

func NewBookingHandler(coordinator *booking.Coordinator, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{coordinator: coordinator, logger: logger}
}

// Register mounts the appointment API on mux.
func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/appointments", h.Appointments)
	mux.HandleFunc("/api/v1/appointments/detail", h.Get)
	mux.HandleFunc("/api/v1/appointments/update", h.Update)
	mux.HandleFunc("/api/v1/appointments/cancel", h.Cancel)
	mux.HandleFunc("/api/v1/availability", h.Availability)
	mux.HandleFunc("/api/v1/slots", h.Slots)
	mux.HandleFunc("/api/v1/appointment-requests", h.AppointmentRequests)
}

type createAppointmentRequest struct {
	PatientID       string `json:"patient_id"`
	DoctorID        string `json:"doctor_id"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	AppointmentType string `json:"appointment_type"`
	Reason          string `json:"reason"`
	Notes           string `json:"notes"`
}

type updateAppointmentRequest struct {
	AppointmentID   string  `json:"appointment_id"`
	StartTime       *string `json:"start_time"`
	DurationMinutes *int    `json:"duration_minutes"`
	AppointmentType *string `json:"appointment_type"`
	Reason          *string `json:"reason"`
	Notes           *string `json:"notes"`
	Status          *string `json:"status"`
}

type cancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type appointmentResponse struct {
	ID              string `json:"id"`
	PatientID       string `json:"patient_id"`
	DoctorID        string `json:"doctor_id"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
	AppointmentType string `json:"appointment_type"`
	Reason          string `json:"reason"`
	Notes           string `json:"notes,omitempty"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type availabilityResponse struct {
	DoctorID        string `json:"doctor_id"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Available       bool   `json:"available"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type slotsResponse struct {
	DoctorID        string     `json:"doctor_id"`
	Date            string     `json:"date"`
	DurationMinutes int        `json:"duration_minutes"`
	Slots           []slotItem `json:"slots"`
}

func toResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		StartTime:       a.StartTime.UTC().Format(time.RFC3339),
		EndTime:         a.EndTime().UTC().Format(time.RFC3339),
		DurationMinutes: a.DurationMinutes,
		AppointmentType: string(a.Type),
		Reason:          a.Reason,
		Notes:           a.Notes,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Appointments serves POST (create) and GET (list for the caller).
func (h *BookingHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Create(w, r)
	case http.MethodGet:
		h.List(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := auth.CurrentUserID(r.Context())
	if userID == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	startTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	apptType := model.TypeRegular
	if strings.TrimSpace(req.AppointmentType) != "" {
		apptType, err = model.ParseType(req.AppointmentType)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	patientID := strings.TrimSpace(req.PatientID)
	if patientID == "" {
		patientID = userID
	}

	appt, err := h.coordinator.CreateAppointment(r.Context(), booking.CreateRequest{
		PatientID:       patientID,
		DoctorID:        req.DoctorID,
		StartTime:       startTime,
		DurationMinutes: req.DurationMinutes,
		Type:            apptType,
		Reason:          req.Reason,
		Notes:           req.Notes,
	})
	if err != nil {
		h.writeError(w, r, "create appointment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(appt))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := auth.CurrentUserID(r.Context())
	if userID == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	limit, ok := parseLimit(w, r.URL.Query().Get("limit"))
	if !ok {
		return
	}

	appts, err := h.coordinator.ListAppointments(r.Context(), userID, limit)
	if err != nil {
		h.writeError(w, r, "list appointments", err)
		return
	}
	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if id == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	appt, err := h.coordinator.GetAppointment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	var patch model.Patch
	if req.StartTime != nil {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.StartTime))
		if err != nil {
			http.Error(w, "invalid start_time", http.StatusBadRequest)
			return
		}
		patch.StartTime = &t
	}
	patch.DurationMinutes = req.DurationMinutes
	if req.AppointmentType != nil {
		t, err := model.ParseType(*req.AppointmentType)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		patch.Type = &t
	}
	if req.Status != nil {
		s, err := model.ParseStatus(*req.Status)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		patch.Status = &s
	}
	patch.Reason = req.Reason
	patch.Notes = req.Notes

	appt, err := h.coordinator.UpdateAppointment(r.Context(), req.AppointmentID, patch)
	if err != nil {
		h.writeError(w, r, "update appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	appt, err := h.coordinator.CancelAppointment(r.Context(), req.AppointmentID)
	if err != nil {
		h.writeError(w, r, "cancel appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	doctorID := strings.TrimSpace(q.Get("doctor_id"))
	if doctorID == "" {
		http.Error(w, "doctor_id required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Get("start_time")))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	duration, ok := parseDuration(w, q.Get("duration_minutes"))
	if !ok {
		return
	}

	available, err := h.coordinator.CheckAvailability(r.Context(), doctorID, start, duration)
	if err != nil {
		h.writeError(w, r, "check availability", err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		DoctorID:        doctorID,
		StartTime:       start.UTC().Format(time.RFC3339),
		DurationMinutes: duration,
		Available:       available,
	})
}

// Slots lists bookable start times for a doctor on a date. workday_start,
// workday_end (HH:MM) and slot_step_minutes override the doctor's schedule.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	doctorID := strings.TrimSpace(q.Get("doctor_id"))
	if doctorID == "" {
		http.Error(w, "doctor_id required", http.StatusBadRequest)
		return
	}
	dateStr := strings.TrimSpace(q.Get("date"))
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		http.Error(w, "invalid date (expected YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	duration, ok := parseDuration(w, q.Get("duration_minutes"))
	if !ok {
		return
	}

	var overrides []booking.ScheduleOverride
	if raw := strings.TrimSpace(q.Get("workday_start")); raw != "" {
		d, err := config.ParseClock(raw)
		if err != nil {
			http.Error(w, "invalid workday_start", http.StatusBadRequest)
			return
		}
		overrides = append(overrides, func(s *availability.Schedule) { s.WorkStart = d })
	}
	if raw := strings.TrimSpace(q.Get("workday_end")); raw != "" {
		d, err := config.ParseClock(raw)
		if err != nil {
			http.Error(w, "invalid workday_end", http.StatusBadRequest)
			return
		}
		overrides = append(overrides, func(s *availability.Schedule) { s.WorkEnd = d })
	}
	if raw := strings.TrimSpace(q.Get("slot_step_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 24*60 {
			http.Error(w, "invalid slot_step_minutes", http.StatusBadRequest)
			return
		}
		overrides = append(overrides, func(s *availability.Schedule) { s.Step = time.Duration(n) * time.Minute })
	}

	seq, err := h.coordinator.GenerateSlots(r.Context(), doctorID, date, duration, overrides...)
	if err != nil {
		h.writeError(w, r, "generate slots", err)
		return
	}
	slotLen := time.Duration(duration) * time.Minute
	items := []slotItem{}
	for start := range seq {
		items = append(items, slotItem{
			StartTime: start.UTC().Format(time.RFC3339),
			EndTime:   start.Add(slotLen).UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, slotsResponse{
		DoctorID:        doctorID,
		Date:            dateStr,
		DurationMinutes: duration,
		Slots:           items,
	})
}

func parseLimit(w http.ResponseWriter, raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func parseDuration(w http.ResponseWriter, raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.DefaultDurationMinutes, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, booking.ErrNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrSlotUnavailable):
		http.Error(w, "time slot not available", http.StatusConflict)
	case errors.Is(err, booking.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error(op+" failed", "err", err, "path", r.URL.Path, "user_id", auth.CurrentUserID(r.Context()))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
