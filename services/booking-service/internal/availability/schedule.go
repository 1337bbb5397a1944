package availability

import "time"

const (
	DefaultWorkStart = 9 * time.Hour
	DefaultWorkEnd   = 17 * time.Hour
	DefaultStep      = 30 * time.Minute
)

// Schedule is a doctor's daily working window. WorkStart and WorkEnd are
// offsets from local midnight in Location.
type Schedule struct {
	WorkStart time.Duration
	WorkEnd   time.Duration
	Step      time.Duration
	Location  *time.Location
}

func DefaultSchedule() Schedule {
	return Schedule{
		WorkStart: DefaultWorkStart,
		WorkEnd:   DefaultWorkEnd,
		Step:      DefaultStep,
		Location:  time.UTC,
	}
}

// WithDefaults fills unset fields. A window is only defaulted as a whole so
// that an explicit 00:00 start is preserved when an end is given.
func (s Schedule) WithDefaults() Schedule {
	if s.WorkStart == 0 && s.WorkEnd == 0 {
		s.WorkStart = DefaultWorkStart
		s.WorkEnd = DefaultWorkEnd
	}
	if s.Step <= 0 {
		s.Step = DefaultStep
	}
	if s.Location == nil {
		s.Location = time.UTC
	}
	return s
}

// Window returns the working interval for the calendar day of date. Only
// date's year, month and day are used. Both ends are wall-clock times in the
// schedule's location, so the window keeps its local hours on DST days.
func (s Schedule) Window(date time.Time) Interval {
	s = s.WithDefaults()
	y, m, d := date.Date()
	return Interval{Start: wallClock(y, m, d, s.WorkStart, s.Location), End: wallClock(y, m, d, s.WorkEnd, s.Location)}
}

func wallClock(y int, m time.Month, d int, offset time.Duration, loc *time.Location) time.Time {
	h := int(offset / time.Hour)
	mins := int(offset % time.Hour / time.Minute)
	sec := int(offset % time.Minute / time.Second)
	return time.Date(y, m, d, h, mins, sec, 0, loc)
}
