package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type appointmentRequestBody struct {
	DoctorID string `json:"doctor_id"`
	Message  string `json:"message"`
}

type appointmentRequestResponse struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

func toRequestResponse(req model.AppointmentRequest) appointmentRequestResponse {
	return appointmentRequestResponse{
		ID:        req.ID,
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Message:   req.Message,
		CreatedAt: req.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// AppointmentRequests serves POST (submit a request as the caller) and GET
// (the caller's own requests).
func (h *BookingHandler) AppointmentRequests(w http.ResponseWriter, r *http.Request) {
	userID := auth.CurrentUserID(r.Context())
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if userID == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	if r.Method == http.MethodGet {
		limit, ok := parseLimit(w, r.URL.Query().Get("limit"))
		if !ok {
			return
		}
		reqs, err := h.coordinator.ListAppointmentRequests(r.Context(), userID, limit)
		if err != nil {
			h.writeError(w, r, "list appointment requests", err)
			return
		}
		items := make([]appointmentRequestResponse, 0, len(reqs))
		for _, req := range reqs {
			items = append(items, toRequestResponse(req))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}

	var body appointmentRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req, err := h.coordinator.RequestAppointment(r.Context(), userID, body.DoctorID, body.Message)
	if err != nil {
		h.writeError(w, r, "request appointment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestResponse(req))
}
