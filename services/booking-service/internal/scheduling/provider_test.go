package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
)

func TestStaticProviderDefaults(t *testing.T) {
	p := NewStaticProvider(availability.Schedule{})
	s, err := p.Schedule(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if s.WorkStart != 9*time.Hour || s.WorkEnd != 17*time.Hour || s.Step != 30*time.Minute {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestParseSchedule(t *testing.T) {
	base := availability.DefaultSchedule()
	s, err := parseSchedule(map[string]string{
		"work_start":        "08:00",
		"work_end":          "12:30",
		"slot_step_minutes": "15",
	}, base)
	if err != nil {
		t.Fatalf("parseSchedule failed: %v", err)
	}
	if s.WorkStart != 8*time.Hour || s.WorkEnd != 12*time.Hour+30*time.Minute || s.Step != 15*time.Minute {
		t.Fatalf("unexpected schedule: %+v", s)
	}
	if s.Location != time.UTC {
		t.Fatalf("expected base location kept, got %v", s.Location)
	}
}

func TestParseScheduleRejectsInvertedWindow(t *testing.T) {
	base := availability.DefaultSchedule()
	s, err := parseSchedule(map[string]string{"work_start": "18:00"}, base)
	if err == nil {
		t.Fatal("expected error for start after end")
	}
	if s != base {
		t.Fatalf("expected base schedule on error, got %+v", s)
	}
	if _, err := parseSchedule(map[string]string{"slot_step_minutes": "0"}, base); err == nil {
		t.Fatal("expected error for zero step")
	}
}
