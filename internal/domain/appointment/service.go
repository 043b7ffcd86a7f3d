package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/domain/schedule"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/timeslot"
	"github.com/carebook/carebook/pkg/pagination"
)

// ErrForbidden is returned when the caller is not a party to the appointment.
var ErrForbidden = errors.New("not allowed to access this appointment")

// ValidationError marks a booking or status change rejected for bad input or
// a business-rule violation, as opposed to a storage failure.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func invalidf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// SlotChecker answers whether a (doctor, date, time) slot is open. The
// schedule service implements it.
type SlotChecker interface {
	IsSlotAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time, clock string) (schedule.Availability, error)
}

type Service struct {
	repo  Repository
	slots SlotChecker
	loc   *time.Location
	now   func() time.Time
}

func NewService(repo Repository, slots SlotChecker, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, slots: slots, loc: loc, now: time.Now}
}

// BookRequest carries one booking attempt. PatientID comes from the caller's
// identity, never the request body.
type BookRequest struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      time.Time
	Time      string
	Reason    string
	Symptoms  string
	Notes     string
}

// Book reserves a slot. The availability pre-check gives callers a precise
// rejection reason; the insert's unique index is what actually prevents two
// concurrent bookings from both succeeding, and its violation surfaces as
// ErrSlotTaken.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if !timeslot.ValidClock(req.Time) {
		return nil, invalidf("time: must be in HH:MM format")
	}
	date := req.Date.In(s.loc)
	today := s.now().In(s.loc)
	if date.Format("2006-01-02") < today.Format("2006-01-02") {
		return nil, invalidf("date: cannot book an appointment in the past")
	}

	avail, err := s.slots.IsSlotAvailable(ctx, req.DoctorID, date, req.Time)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, invalidf("%s", avail.Reason)
	}

	a := &Appointment{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		Date:      date,
		Time:      req.Time,
		Status:    StatusScheduled,
		Reason:    req.Reason,
		Symptoms:  req.Symptoms,
		Notes:     req.Notes,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns the appointment when the caller is a party to it.
func (s *Service) Get(ctx context.Context, id, actorID uuid.UUID, role string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(a, actorID, role); err != nil {
		return nil, err
	}
	return a, nil
}

// ListForCaller returns the caller's own appointments: a doctor sees their
// ledger, anyone else sees their bookings.
func (s *Service) ListForCaller(ctx context.Context, actorID uuid.UUID, role string, p pagination.Params) ([]*Appointment, int, error) {
	if role == auth.RoleDoctor {
		return s.repo.ListByDoctor(ctx, actorID, p)
	}
	return s.repo.ListByPatient(ctx, actorID, p)
}

// UpdateStatus moves the appointment along its lifecycle. Cancellation goes
// through Cancel, not here.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next Status, actorID uuid.UUID, role string) (*Appointment, error) {
	if !next.Valid() {
		return nil, invalidf("status: unknown value %q", next)
	}
	if next == StatusCancelled {
		return nil, invalidf("status: use the cancel endpoint to cancel")
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != auth.RoleAdmin && a.DoctorID != actorID {
		return nil, ErrForbidden
	}
	if !a.Status.CanTransition(next) {
		return nil, invalidf("status: cannot change from %s to %s", a.Status, next)
	}
	a.Status = next
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Cancel releases the slot. The row survives with its cancellation record, so
// the slot frees up for rebooking while history is kept.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorID uuid.UUID, role, reason string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(a, actorID, role); err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return nil, invalidf("appointment is already %s", a.Status)
	}
	now := s.now().In(s.loc)
	a.Status = StatusCancelled
	a.CancelledBy = role
	a.CancelledReason = reason
	a.CancelledAt = &now
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SweepNoShows marks scheduled and confirmed appointments whose slot started
// more than grace ago as no-show.
func (s *Service) SweepNoShows(ctx context.Context, grace time.Duration) (int64, error) {
	cutoff := s.now().In(s.loc).Add(-grace)
	return s.repo.MarkOverdueNoShow(ctx, cutoff)
}

func authorize(a *Appointment, actorID uuid.UUID, role string) error {
	switch role {
	case auth.RoleAdmin:
		return nil
	case auth.RoleDoctor:
		if a.DoctorID == actorID {
			return nil
		}
	default:
		if a.PatientID == actorID {
			return nil
		}
	}
	return ErrForbidden
}
