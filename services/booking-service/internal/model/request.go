package model

import "time"

const MaxRequestMessageLen = 2000

// AppointmentRequest is a patient's free-text ask to be seen by a doctor. It
// has no time slot and never occupies the doctor's calendar; the doctor
// follows up by booking an Appointment.
type AppointmentRequest struct {
	ID        string
	PatientID string
	DoctorID  string
	Message   string
	CreatedAt time.Time
}
