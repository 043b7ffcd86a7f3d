package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a doctor has no schedule entry for the
// requested day. Availability queries treat it as "zero slots", not a fault.
var ErrNotFound = errors.New("schedule not found")

// ValidationError marks a schedule update rejected for bad input, as opposed
// to a storage failure.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func invalidf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

type Repository interface {
	// GetForDay returns the doctor's entry for dayOfWeek (0=Sunday), or
	// ErrNotFound.
	GetForDay(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*WeeklySchedule, error)
	// ListByDoctor returns all of the doctor's entries ordered by day.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*WeeklySchedule, error)
	// Replace deletes every existing entry for the doctor and inserts the
	// given set atomically; no partial state is ever observable.
	Replace(ctx context.Context, doctorID uuid.UUID, entries []*WeeklySchedule) error
}

// BookingLedger is the slice of the appointment ledger the availability
// queries need. Implemented by the appointment repository.
type BookingLedger interface {
	// BookedTimes returns the "HH:MM" start times of the doctor's active
	// (non-cancelled, non-no-show) appointments on date.
	BookedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)
	// HasActive reports whether an active appointment already occupies the
	// exact (doctor, date, time) key.
	HasActive(ctx context.Context, doctorID uuid.UUID, date time.Time, clock string) (bool, error)
}
