package scheduling

import (
	"context"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
)

// Provider resolves a doctor's working hours for slot generation.
type Provider interface {
	Schedule(ctx context.Context, doctorID string) (availability.Schedule, error)
}

// StaticProvider gives every doctor the same configured schedule.
type StaticProvider struct {
	schedule availability.Schedule
}

func NewStaticProvider(s availability.Schedule) *StaticProvider {
	return &StaticProvider{schedule: s.WithDefaults()}
}

func (p *StaticProvider) Schedule(_ context.Context, _ string) (availability.Schedule, error) {
	return p.schedule, nil
}
