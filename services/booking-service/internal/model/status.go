package model

import (
	"fmt"
	"strings"
)

// Status transitions:
//
//	scheduled → confirmed | cancelled | completed | no_show
//	confirmed → cancelled | completed | no_show
//
// cancelled, completed and no_show are terminal.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

var transitions = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow},
	StatusConfirmed: {StatusCancelled, StatusCompleted, StatusNoShow},
	StatusCancelled: {},
	StatusCompleted: {},
	StatusNoShow:    {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown appointment status %q", raw)
	}
	return s, nil
}
