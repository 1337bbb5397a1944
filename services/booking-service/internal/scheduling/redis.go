package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "clinicbook:doctor_schedule:"

// RedisProvider reads per-doctor working hours from a redis hash
// (fields work_start, work_end as HH:MM, slot_step_minutes, timezone).
// Doctors without a hash, and hashes with bad fields, get the fallback.
type RedisProvider struct {
	client   redis.Cmdable
	prefix   string
	fallback Provider
	logger   *slog.Logger
}

func NewRedisProvider(client redis.Cmdable, prefix string, fallback Provider, logger *slog.Logger) *RedisProvider {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisProvider{client: client, prefix: prefix, fallback: fallback, logger: logger}
}

func (p *RedisProvider) Key(doctorID string) string {
	return p.prefix + doctorID
}

func (p *RedisProvider) Schedule(ctx context.Context, doctorID string) (availability.Schedule, error) {
	fields, err := p.client.HGetAll(ctx, p.Key(doctorID)).Result()
	if err != nil {
		p.logger.Warn("doctor schedule lookup failed, using default", "doctor_id", doctorID, "err", err)
		return p.fallback.Schedule(ctx, doctorID)
	}
	if len(fields) == 0 {
		return p.fallback.Schedule(ctx, doctorID)
	}
	base, err := p.fallback.Schedule(ctx, doctorID)
	if err != nil {
		return availability.Schedule{}, err
	}
	s, err := parseSchedule(fields, base)
	if err != nil {
		p.logger.Warn("invalid doctor schedule, using default", "doctor_id", doctorID, "err", err)
		return base, nil
	}
	return s, nil
}

func parseSchedule(fields map[string]string, base availability.Schedule) (availability.Schedule, error) {
	s := base
	if v, ok := fields["work_start"]; ok {
		d, err := config.ParseClock(v)
		if err != nil {
			return base, err
		}
		s.WorkStart = d
	}
	if v, ok := fields["work_end"]; ok {
		d, err := config.ParseClock(v)
		if err != nil {
			return base, err
		}
		s.WorkEnd = d
	}
	if v, ok := fields["slot_step_minutes"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return base, fmt.Errorf("invalid slot_step_minutes %q", v)
		}
		s.Step = time.Duration(n) * time.Minute
	}
	if v, ok := fields["timezone"]; ok && v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return base, err
		}
		s.Location = loc
	}
	if s.WorkEnd <= s.WorkStart {
		return base, fmt.Errorf("work_end must be after work_start")
	}
	return s, nil
}
