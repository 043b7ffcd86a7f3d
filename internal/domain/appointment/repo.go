package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/pkg/pagination"
)

var (
	// ErrNotFound is returned when no appointment matches the given id.
	ErrNotFound = errors.New("appointment not found")
	// ErrSlotTaken is returned when an insert collides with an active
	// appointment on the same (doctor, date, time). It surfaces the
	// database's unique-index rejection, so two concurrent bookings of the
	// same slot resolve to exactly one winner.
	ErrSlotTaken = errors.New("time slot already booked")
)

type Repository interface {
	// Create inserts a new appointment, or returns ErrSlotTaken when the
	// slot is already held by an active appointment.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Update persists status and cancellation fields.
	Update(ctx context.Context, a *Appointment) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, p pagination.Params) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, p pagination.Params) ([]*Appointment, int, error)
	// BookedTimes returns the times of the doctor's active appointments on
	// date, for slot generation.
	BookedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)
	// HasActive reports whether an active appointment holds the exact slot.
	HasActive(ctx context.Context, doctorID uuid.UUID, date time.Time, clock string) (bool, error)
	// MarkOverdueNoShow flips scheduled/confirmed appointments whose slot
	// started before cutoff to no-show, returning how many rows changed.
	MarkOverdueNoShow(ctx context.Context, cutoff time.Time) (int64, error)
}
