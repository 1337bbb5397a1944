package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/notify"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RequestAppointment records a patient's free-text request to see a doctor
// and tells the doctor about it. No availability check is involved.
func (c *Coordinator) RequestAppointment(ctx context.Context, patientID, doctorID, message string) (req model.AppointmentRequest, err error) {
	ctx, span := c.tracer.Start(ctx, "booking.request", trace.WithAttributes(attribute.String("doctor.id", doctorID)))
	defer func() { endSpan(span, err) }()

	patientID = strings.TrimSpace(patientID)
	doctorID = strings.TrimSpace(doctorID)
	message = strings.TrimSpace(message)
	switch {
	case doctorID == "":
		return model.AppointmentRequest{}, validationErrorf("doctor_id is required")
	case patientID == "":
		return model.AppointmentRequest{}, validationErrorf("patient_id is required")
	case message == "":
		return model.AppointmentRequest{}, validationErrorf("message is required")
	case len(message) > model.MaxRequestMessageLen:
		return model.AppointmentRequest{}, validationErrorf("message exceeds %d bytes", model.MaxRequestMessageLen)
	}

	req, err = c.store.InsertRequest(ctx, model.AppointmentRequest{
		ID:        uuid.NewString(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Message:   message,
		CreatedAt: c.cfg.Now().UTC(),
	})
	if err != nil {
		return model.AppointmentRequest{}, storeError("insert appointment request", err)
	}

	c.logger.Info("appointment requested", "request_id", req.ID, "doctor_id", req.DoctorID, "patient_id", req.PatientID)
	c.send(ctx, notify.Notification{
		UserID:    req.DoctorID,
		Title:     "New Appointment Request",
		Message:   fmt.Sprintf("Patient %s requested an appointment: %s", req.PatientID, req.Message),
		CreatedAt: req.CreatedAt,
	})
	return req, nil
}

// ListAppointmentRequests returns the patient's requests, newest first.
func (c *Coordinator) ListAppointmentRequests(ctx context.Context, patientID string, limit int) ([]model.AppointmentRequest, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, validationErrorf("patient_id is required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	reqs, err := c.store.ListRequestsForPatient(ctx, patientID, limit)
	if err != nil {
		return nil, storeError("list appointment requests", err)
	}
	return reqs, nil
}
