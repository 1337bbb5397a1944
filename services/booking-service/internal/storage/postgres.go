package storage

import (
	"context"
	_ "embed"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool *db.Pool
}

func NewPostgresStore(pool *db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the embedded schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

const appointmentColumns = `id::text, patient_id, doctor_id, start_time, duration_minutes, appointment_type,
	reason, COALESCE(notes, ''), status, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, doctor_id, start_time, end_time, duration_minutes, appointment_type, reason, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)
		RETURNING `+appointmentColumns,
		appt.ID, appt.PatientID, appt.DoctorID, appt.StartTime, appt.EndTime(), appt.DurationMinutes,
		string(appt.Type), appt.Reason, appt.Notes, string(appt.Status), appt.CreatedAt, appt.UpdatedAt)
	return scanAppointment(row)
}

// Update applies the non-nil fields of patch. end_time is recomputed from the
// effective start and duration so the exclusion constraint sees the new range.
func (s *PostgresStore) Update(ctx context.Context, id string, patch model.Patch, updatedAt time.Time) (model.Appointment, error) {
	if uuid.Validate(id) != nil {
		return model.Appointment{}, ErrNotFound
	}
	var typ, status *string
	if patch.Type != nil {
		v := string(*patch.Type)
		typ = &v
	}
	if patch.Status != nil {
		v := string(*patch.Status)
		status = &v
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = COALESCE($2::timestamptz, start_time),
			duration_minutes = COALESCE($3::integer, duration_minutes),
			end_time = COALESCE($2::timestamptz, start_time) + make_interval(mins => COALESCE($3::integer, duration_minutes)),
			appointment_type = COALESCE($4::text, appointment_type),
			reason = COALESCE($5::text, reason),
			notes = COALESCE($6::text, notes),
			status = COALESCE($7::text, status),
			updated_at = $8
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, patch.StartTime, patch.DurationMinutes, typ, patch.Reason, patch.Notes, status, updatedAt)
	return scanAppointment(row)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (model.Appointment, error) {
	if uuid.Validate(id) != nil {
		return model.Appointment{}, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (s *PostgresStore) QueryByDoctor(ctx context.Context, doctorID string, excludeStatuses []model.Status, from, to time.Time) ([]model.Appointment, error) {
	exclude := make([]string, 0, len(excludeStatuses))
	for _, st := range excludeStatuses {
		exclude = append(exclude, string(st))
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
			AND status <> ALL($2::text[])
			AND start_time < $4
			AND end_time > $3
	`, doctorID, exclude, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *PostgresStore) ListForUser(ctx context.Context, userID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1 OR doctor_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *PostgresStore) InsertRequest(ctx context.Context, req model.AppointmentRequest) (model.AppointmentRequest, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO appointment_requests (id, patient_id, doctor_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, req.ID, req.PatientID, req.DoctorID, req.Message, req.CreatedAt)
	if err != nil {
		return model.AppointmentRequest{}, err
	}
	return req, nil
}

func (s *PostgresStore) ListRequestsForPatient(ctx context.Context, patientID string, limit int) ([]model.AppointmentRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, patient_id, doctor_id, message, created_at
		FROM appointment_requests
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentRequest
	for rows.Next() {
		var req model.AppointmentRequest
		if err := rows.Scan(&req.ID, &req.PatientID, &req.DoctorID, &req.Message, &req.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var typ, status string
	err := row.Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.DoctorID,
		&appt.StartTime,
		&appt.DurationMinutes,
		&typ,
		&appt.Reason,
		&appt.Notes,
		&status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Type = model.Type(typ)
	appt.Status = model.Status(status)
	return appt, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}
