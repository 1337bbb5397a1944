package booking

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/lock"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/scheduling"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store is everything the coordinator needs from the appointment store.
// Writes that would overlap another non-cancelled appointment of the same
// doctor must fail with an error recognised by storage.IsConflict.
type Store interface {
	availability.AppointmentLister
	Insert(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	Update(ctx context.Context, id string, patch model.Patch, updatedAt time.Time) (model.Appointment, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]model.Appointment, error)
	InsertRequest(ctx context.Context, req model.AppointmentRequest) (model.AppointmentRequest, error)
	ListRequestsForPatient(ctx context.Context, patientID string, limit int) ([]model.AppointmentRequest, error)
}

type Config struct {
	// MaxWriteAttempts bounds how often a write rejected by the store's
	// overlap constraint is retried after a fresh availability check.
	MaxWriteAttempts int
	NotifyTimeout    time.Duration
	Now              func() time.Time
}

const (
	defaultMaxWriteAttempts = 3
	defaultNotifyTimeout    = 3 * time.Second
	defaultListLimit        = 50
	maxListLimit            = 200
)

// Coordinator owns every mutation of appointments. Check-and-write sequences
// run under a per-doctor lock, and the store's overlap constraint backs the
// lock up when several instances share a database.
type Coordinator struct {
	store     Store
	checker   *availability.Checker
	locker    lock.Locker
	notifier  notify.Notifier
	schedules scheduling.Provider
	logger    *slog.Logger
	tracer    trace.Tracer
	cfg       Config
}

func NewCoordinator(store Store, locker lock.Locker, notifier notify.Notifier, schedules scheduling.Provider, logger *slog.Logger, cfg Config) *Coordinator {
	if cfg.MaxWriteAttempts <= 0 {
		cfg.MaxWriteAttempts = defaultMaxWriteAttempts
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if schedules == nil {
		schedules = scheduling.NewStaticProvider(availability.DefaultSchedule())
	}
	return &Coordinator{
		store:     store,
		checker:   availability.NewChecker(store),
		locker:    locker,
		notifier:  notifier,
		schedules: schedules,
		logger:    logger,
		tracer:    otel.Tracer("booking"),
		cfg:       cfg,
	}
}

type CreateRequest struct {
	PatientID       string
	DoctorID        string
	StartTime       time.Time
	DurationMinutes int
	Type            model.Type
	Reason          string
	Notes           string
}

func (c *Coordinator) CreateAppointment(ctx context.Context, req CreateRequest) (appt model.Appointment, err error) {
	ctx, span := c.tracer.Start(ctx, "booking.create", trace.WithAttributes(attribute.String("doctor.id", req.DoctorID)))
	defer func() { endSpan(span, err) }()

	candidate, err := c.newAppointment(req)
	if err != nil {
		return model.Appointment{}, err
	}

	err = c.withDoctorLock(ctx, candidate.DoctorID, func(ctx context.Context) error {
		interval := availability.NewInterval(candidate.StartTime, candidate.Duration())
		return c.writeChecked(ctx, candidate.DoctorID, interval, "", func() error {
			saved, err := c.store.Insert(ctx, candidate)
			if err != nil {
				return err
			}
			appt = saved
			return nil
		})
	})
	if err != nil {
		return model.Appointment{}, err
	}

	span.SetAttributes(attribute.String("appointment.id", appt.ID))
	c.logger.Info("appointment created", "appointment_id", appt.ID, "doctor_id", appt.DoctorID, "start_time", appt.StartTime)
	c.notifyDoctor(ctx, appt)
	return appt, nil
}

func (c *Coordinator) newAppointment(req CreateRequest) (model.Appointment, error) {
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.DoctorID == "" {
		return model.Appointment{}, validationErrorf("doctor_id is required")
	}
	if req.PatientID == "" {
		return model.Appointment{}, validationErrorf("patient_id is required")
	}
	if req.StartTime.IsZero() {
		return model.Appointment{}, validationErrorf("start_time is required")
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = model.DefaultDurationMinutes
	}
	if err := model.ValidateDuration(req.DurationMinutes); err != nil {
		return model.Appointment{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if req.Type == "" {
		req.Type = model.TypeRegular
	}
	if !req.Type.Valid() {
		return model.Appointment{}, validationErrorf("unknown appointment type %q", req.Type)
	}
	if req.Reason == "" {
		return model.Appointment{}, validationErrorf("reason is required")
	}

	now := c.cfg.Now().UTC()
	return model.Appointment{
		ID:              uuid.NewString(),
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		StartTime:       req.StartTime.UTC(),
		DurationMinutes: req.DurationMinutes,
		Type:            req.Type,
		Reason:          req.Reason,
		Notes:           strings.TrimSpace(req.Notes),
		Status:          model.StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// UpdateAppointment applies the fields present in patch. The doctor's
// calendar is only consulted when the start time or duration actually move.
func (c *Coordinator) UpdateAppointment(ctx context.Context, id string, patch model.Patch) (appt model.Appointment, err error) {
	ctx, span := c.tracer.Start(ctx, "booking.update", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer func() { endSpan(span, err) }()

	if err := validatePatch(&patch); err != nil {
		return model.Appointment{}, err
	}
	existing, err := c.get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}

	err = c.withDoctorLock(ctx, existing.DoctorID, func(ctx context.Context) error {
		// Re-read under the lock; the first read only located the doctor.
		current, err := c.get(ctx, id)
		if err != nil {
			return err
		}
		if patch.Status != nil && *patch.Status != current.Status && !current.Status.CanTransitionTo(*patch.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, *patch.Status)
		}

		write := func() error {
			updated, err := c.store.Update(ctx, id, patch, c.cfg.Now().UTC())
			if err != nil {
				return err
			}
			appt = updated
			return nil
		}

		if patch.Reschedules(current) {
			if current.Status.Terminal() {
				return fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, current.Status)
			}
			if next := patch.Apply(current); next.Blocking() {
				interval := availability.NewInterval(next.StartTime, next.Duration())
				return c.writeChecked(ctx, next.DoctorID, interval, id, write)
			}
		}
		return writeError("update appointment", write())
	})
	if err != nil {
		return model.Appointment{}, err
	}
	c.logger.Info("appointment updated", "appointment_id", appt.ID, "status", appt.Status)
	return appt, nil
}

func validatePatch(p *model.Patch) error {
	if p.StartTime != nil {
		if p.StartTime.IsZero() {
			return validationErrorf("start_time must not be empty")
		}
		utc := p.StartTime.UTC()
		p.StartTime = &utc
	}
	if p.DurationMinutes != nil {
		if err := model.ValidateDuration(*p.DurationMinutes); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	if p.Type != nil && !p.Type.Valid() {
		return validationErrorf("unknown appointment type %q", *p.Type)
	}
	if p.Status != nil && !p.Status.Valid() {
		return validationErrorf("unknown appointment status %q", *p.Status)
	}
	if p.Reason != nil {
		reason := strings.TrimSpace(*p.Reason)
		if reason == "" {
			return validationErrorf("reason must not be empty")
		}
		p.Reason = &reason
	}
	if p.Notes != nil {
		notes := strings.TrimSpace(*p.Notes)
		p.Notes = &notes
	}
	return nil
}

// CancelAppointment is idempotent: cancelling a cancelled appointment
// returns it unchanged.
func (c *Coordinator) CancelAppointment(ctx context.Context, id string) (appt model.Appointment, err error) {
	ctx, span := c.tracer.Start(ctx, "booking.cancel", trace.WithAttributes(attribute.String("appointment.id", id)))
	defer func() { endSpan(span, err) }()

	existing, err := c.get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if existing.Status == model.StatusCancelled {
		return existing, nil
	}

	err = c.withDoctorLock(ctx, existing.DoctorID, func(ctx context.Context) error {
		current, err := c.get(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == model.StatusCancelled {
			appt = current
			return nil
		}
		if !current.Status.CanTransitionTo(model.StatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, model.StatusCancelled)
		}
		status := model.StatusCancelled
		updated, err := c.store.Update(ctx, id, model.Patch{Status: &status}, c.cfg.Now().UTC())
		if err != nil {
			return writeError("cancel appointment", err)
		}
		appt = updated
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	c.logger.Info("appointment cancelled", "appointment_id", appt.ID, "doctor_id", appt.DoctorID)
	return appt, nil
}

func (c *Coordinator) CheckAvailability(ctx context.Context, doctorID string, start time.Time, durationMinutes int) (available bool, err error) {
	ctx, span := c.tracer.Start(ctx, "booking.check_availability", trace.WithAttributes(attribute.String("doctor.id", doctorID)))
	defer func() { endSpan(span, err) }()

	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return false, validationErrorf("doctor_id is required")
	}
	if start.IsZero() {
		return false, validationErrorf("start_time is required")
	}
	if err := model.ValidateDuration(durationMinutes); err != nil {
		return false, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	interval := availability.NewInterval(start.UTC(), time.Duration(durationMinutes)*time.Minute)
	ok, err := c.checker.IsAvailable(ctx, doctorID, interval, "")
	if err != nil {
		return false, storeError("check availability", err)
	}
	return ok, nil
}

// ScheduleOverride adjusts the doctor's resolved schedule for one call.
type ScheduleOverride func(*availability.Schedule)

// GenerateSlots lists free start times on the calendar day of date. The
// appointment store is read once per call.
func (c *Coordinator) GenerateSlots(ctx context.Context, doctorID string, date time.Time, durationMinutes int, overrides ...ScheduleOverride) (slots iter.Seq[time.Time], err error) {
	ctx, span := c.tracer.Start(ctx, "booking.generate_slots", trace.WithAttributes(attribute.String("doctor.id", doctorID)))
	defer func() { endSpan(span, err) }()

	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, validationErrorf("doctor_id is required")
	}
	if date.IsZero() {
		return nil, validationErrorf("date is required")
	}
	if err := model.ValidateDuration(durationMinutes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	schedule, err := c.schedules.Schedule(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("resolve schedule for doctor %s: %w", doctorID, err)
	}
	schedule = schedule.WithDefaults()
	for _, o := range overrides {
		o(&schedule)
	}
	if schedule.WorkEnd <= schedule.WorkStart {
		return nil, validationErrorf("workday end must be after start")
	}

	slots, err = c.checker.Slots(ctx, doctorID, date, time.Duration(durationMinutes)*time.Minute, schedule)
	if err != nil {
		return nil, storeError("list slots", err)
	}
	return slots, nil
}

func (c *Coordinator) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	return c.get(ctx, id)
}

// ListAppointments returns the appointments where userID is the patient or
// the doctor, latest start first.
func (c *Coordinator) ListAppointments(ctx context.Context, userID string, limit int) ([]model.Appointment, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationErrorf("user id is required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	appts, err := c.store.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, storeError("list appointments", err)
	}
	return appts, nil
}

func (c *Coordinator) get(ctx context.Context, id string) (model.Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Appointment{}, validationErrorf("appointment id is required")
	}
	appt, err := c.store.Get(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, storeError("get appointment", err)
	}
	return appt, nil
}

func (c *Coordinator) withDoctorLock(ctx context.Context, doctorID string, fn func(ctx context.Context) error) error {
	unlock, err := c.locker.Lock(ctx, "doctor:"+doctorID)
	if err != nil {
		return storeError("lock doctor calendar", err)
	}
	defer unlock()
	return fn(ctx)
}

// writeChecked runs the availability check followed by write. A write the
// store rejects as overlapping sends the loop back to a fresh check, so a
// booking that raced past the lock ends as ErrSlotUnavailable.
func (c *Coordinator) writeChecked(ctx context.Context, doctorID string, interval availability.Interval, excludeID string, write func() error) error {
	for attempt := 1; attempt <= c.cfg.MaxWriteAttempts; attempt++ {
		ok, err := c.checker.IsAvailable(ctx, doctorID, interval, excludeID)
		if err != nil {
			return storeError("check availability", err)
		}
		if !ok {
			return ErrSlotUnavailable
		}
		err = write()
		if err == nil {
			return nil
		}
		if !storage.IsConflict(err) {
			return writeError("write appointment", err)
		}
		c.logger.Warn("appointment write conflicted, rechecking", "doctor_id", doctorID, "attempt", attempt)
	}
	return ErrSlotUnavailable
}

func writeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case storage.IsNotFound(err):
		return ErrNotFound
	case storage.IsConflict(err):
		return ErrSlotUnavailable
	default:
		return storeError(op, err)
	}
}

func (c *Coordinator) notifyDoctor(ctx context.Context, appt model.Appointment) {
	c.send(ctx, notify.Notification{
		UserID:        appt.DoctorID,
		Title:         "New Appointment Booked",
		Message:       fmt.Sprintf("Patient %s booked an appointment for %s", appt.PatientID, appt.StartTime.UTC().Format("2006-01-02 15:04 MST")),
		AppointmentID: appt.ID,
		CreatedAt:     c.cfg.Now().UTC(),
	})
}

// send delivers msg best-effort, detached from the caller's cancellation.
func (c *Coordinator) send(ctx context.Context, msg notify.Notification) {
	if c.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.NotifyTimeout)
	defer cancel()
	if err := c.notifier.Notify(ctx, msg); err != nil {
		c.logger.Warn("doctor notification failed", "user_id", msg.UserID, "title", msg.Title, "err", err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
