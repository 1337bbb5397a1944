package notify

import (
	"context"
	"log/slog"
	"time"
)

// Notification is a message for a single user, typically the doctor of a
// new booking.
type Notification struct {
	UserID        string
	Title         string
	Message       string
	AppointmentID string
	CreatedAt     time.Time
}

// Notifier delivers notifications best-effort. Callers log failures and carry on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier only records the notification. Used when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	n.logger.Info("notification (log only)",
		"user_id", msg.UserID,
		"title", msg.Title,
		"appointment_id", msg.AppointmentID,
	)
	return nil
}
