package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/platform/timeslot"
)

// Reasons returned by IsSlotAvailable when a slot cannot be booked.
const (
	ReasonSlotBooked     = "Time slot already booked"
	ReasonDayUnavailable = "Doctor not available on this day"
	ReasonOutsideHours   = "Time outside working hours"
)

// Service answers availability queries by combining the doctor's weekly
// schedule with the booking ledger, and owns schedule writes.
type Service struct {
	schedules Repository
	ledger    BookingLedger
	loc       *time.Location
	now       func() time.Time
}

// NewService creates the schedule service. loc is the zone that decides what
// "today" means for the same-day booking buffer.
func NewService(schedules Repository, ledger BookingLedger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		schedules: schedules,
		ledger:    ledger,
		loc:       loc,
		now:       time.Now,
	}
}

// ListByDoctor returns the doctor's full weekly schedule ordered by day.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*WeeklySchedule, error) {
	return s.schedules.ListByDoctor(ctx, doctorID)
}

// ReplaceSchedule validates and stores the doctor's whole weekly set. Any
// invalid entry rejects the entire replace; nothing is written. Entries with
// an unset slot duration get the default.
func (s *Service) ReplaceSchedule(ctx context.Context, doctorID uuid.UUID, entries []*WeeklySchedule) ([]*WeeklySchedule, error) {
	seen := make(map[int]bool, len(entries))
	for _, e := range entries {
		if e.SlotDurationMinutes == 0 {
			e.SlotDurationMinutes = DefaultSlotDurationMinutes
		}
		if err := e.Validate(); err != nil {
			return nil, invalidf("%s", err)
		}
		if seen[e.DayOfWeek] {
			return nil, invalidf("day %d: duplicate schedule entry", e.DayOfWeek)
		}
		seen[e.DayOfWeek] = true
	}
	if err := s.schedules.Replace(ctx, doctorID, entries); err != nil {
		return nil, err
	}
	return s.schedules.ListByDoctor(ctx, doctorID)
}

// GetAvailableSlots returns the doctor's free slots on date, plus the day's
// schedule entry when one exists. A doctor with no entry for that weekday, or
// an entry marked unavailable, yields an empty list and a nil error: not
// working that day is a normal outcome.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]timeslot.Slot, *WeeklySchedule, error) {
	date = date.In(s.loc)
	entry, err := s.schedules.GetForDay(ctx, doctorID, int(date.Weekday()))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if !entry.IsAvailable {
		return nil, entry, nil
	}

	bookedTimes, err := s.ledger.BookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, nil, err
	}
	booked := make(map[string]bool, len(bookedTimes))
	for _, t := range bookedTimes {
		booked[t] = true
	}

	slots, err := timeslot.Generate(entry.DaySchedule(), date, booked, s.now().In(s.loc))
	if err != nil {
		return nil, nil, err
	}
	return slots, entry, nil
}

// Availability is the answer to a point query for one (doctor, date, time).
type Availability struct {
	Available bool   `json:"isAvailable"`
	Reason    string `json:"reason,omitempty"`
}

// IsSlotAvailable checks one exact slot. The checks run in a fixed order:
// a ledger conflict wins over everything else, so a slot booked under an
// older schedule still reports as booked rather than out-of-hours; then a
// missing or unavailable day; then working hours and breaks.
func (s *Service) IsSlotAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time, clock string) (Availability, error) {
	minute, err := timeslot.ToMinutes(clock)
	if err != nil {
		return Availability{}, err
	}
	date = date.In(s.loc)

	taken, err := s.ledger.HasActive(ctx, doctorID, date, clock)
	if err != nil {
		return Availability{}, err
	}
	if taken {
		return Availability{Available: false, Reason: ReasonSlotBooked}, nil
	}

	entry, err := s.schedules.GetForDay(ctx, doctorID, int(date.Weekday()))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Availability{Available: false, Reason: ReasonDayUnavailable}, nil
		}
		return Availability{}, err
	}
	if !entry.IsAvailable {
		return Availability{Available: false, Reason: ReasonDayUnavailable}, nil
	}

	start, err := timeslot.ToMinutes(entry.StartTime)
	if err != nil {
		return Availability{}, err
	}
	end, err := timeslot.ToMinutes(entry.EndTime)
	if err != nil {
		return Availability{}, err
	}
	if minute < start || minute >= end {
		return Availability{Available: false, Reason: ReasonOutsideHours}, nil
	}
	for _, b := range entry.BreakTimes {
		bs, err := timeslot.ToMinutes(b.StartTime)
		if err != nil {
			return Availability{}, err
		}
		be, err := timeslot.ToMinutes(b.EndTime)
		if err != nil {
			return Availability{}, err
		}
		if minute >= bs && minute < be {
			return Availability{Available: false, Reason: ReasonOutsideHours}, nil
		}
	}
	return Availability{Available: true}, nil
}
