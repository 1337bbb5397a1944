package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("appointment not found")
	// ErrOverlap is returned when a write would make two non-cancelled
	// appointments of the same doctor overlap.
	ErrOverlap = errors.New("appointment overlaps an existing booking")
)

const exclusionViolation = "23P01"

func IsConflict(err error) bool {
	if errors.Is(err, ErrOverlap) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
