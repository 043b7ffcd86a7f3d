// Package schedule owns a doctor's weekly recurring availability and answers
// slot-availability queries against the booking ledger.
package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/platform/timeslot"
)

// DefaultSlotDurationMinutes is applied when a submitted entry leaves the
// duration unset.
const DefaultSlotDurationMinutes = 30

// WeeklySchedule is one doctor's working pattern for a single day of the week
// (0 = Sunday ... 6 = Saturday). A doctor has at most one entry per day;
// updates replace the doctor's whole set.
type WeeklySchedule struct {
	ID                  uuid.UUID   `db:"id" json:"id"`
	DoctorID            uuid.UUID   `db:"doctor_id" json:"doctorId"`
	DayOfWeek           int         `db:"day_of_week" json:"dayOfWeek"`
	StartTime           string      `db:"start_time" json:"startTime"`
	EndTime             string      `db:"end_time" json:"endTime"`
	IsAvailable         bool        `db:"is_available" json:"isAvailable"`
	SlotDurationMinutes int         `db:"slot_duration_minutes" json:"slotDurationMinutes"`
	MaxAppointments     int         `db:"max_appointments" json:"maxAppointments"`
	BreakTimes          []BreakTime `json:"breakTimes"`
	CreatedAt           time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updatedAt"`
}

// BreakTime is a pause inside the working window. Overlapping breaks are
// accepted; they exclude the same minutes more than once, which is harmless.
type BreakTime struct {
	StartTime   string `db:"start_time" json:"startTime"`
	EndTime     string `db:"end_time" json:"endTime"`
	Description string `db:"description" json:"description,omitempty"`
}

// Validate checks one entry. Errors name the offending day and field so a
// whole-set replace can be rejected with a precise message.
func (s *WeeklySchedule) Validate() error {
	if s.DayOfWeek < 0 || s.DayOfWeek > 6 {
		return fmt.Errorf("day %d: dayOfWeek must be between 0 and 6", s.DayOfWeek)
	}
	start, err := timeslot.ToMinutes(s.StartTime)
	if err != nil {
		return fmt.Errorf("day %d: startTime: %w", s.DayOfWeek, err)
	}
	end, err := timeslot.ToMinutes(s.EndTime)
	if err != nil {
		return fmt.Errorf("day %d: endTime: %w", s.DayOfWeek, err)
	}
	if start >= end {
		return fmt.Errorf("day %d: startTime %s must be before endTime %s", s.DayOfWeek, s.StartTime, s.EndTime)
	}
	if s.SlotDurationMinutes <= 0 {
		return fmt.Errorf("day %d: slotDurationMinutes must be positive", s.DayOfWeek)
	}
	for i, b := range s.BreakTimes {
		bs, err := timeslot.ToMinutes(b.StartTime)
		if err != nil {
			return fmt.Errorf("day %d: breakTimes[%d].startTime: %w", s.DayOfWeek, i, err)
		}
		be, err := timeslot.ToMinutes(b.EndTime)
		if err != nil {
			return fmt.Errorf("day %d: breakTimes[%d].endTime: %w", s.DayOfWeek, i, err)
		}
		if bs >= be {
			return fmt.Errorf("day %d: breakTimes[%d]: startTime %s must be before endTime %s", s.DayOfWeek, i, b.StartTime, b.EndTime)
		}
		if bs < start || be > end {
			return fmt.Errorf("day %d: breakTimes[%d] must fall within working hours %s-%s", s.DayOfWeek, i, s.StartTime, s.EndTime)
		}
	}
	return nil
}

// DaySchedule converts the entry into the slot generator's input form.
func (s *WeeklySchedule) DaySchedule() *timeslot.DaySchedule {
	breaks := make([]timeslot.Break, len(s.BreakTimes))
	for i, b := range s.BreakTimes {
		breaks[i] = timeslot.Break{StartTime: b.StartTime, EndTime: b.EndTime}
	}
	return &timeslot.DaySchedule{
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		IsAvailable:     s.IsAvailable,
		DurationMinutes: s.SlotDurationMinutes,
		Breaks:          breaks,
	}
}

// Summary is the doctorSchedule block returned alongside availability results.
type Summary struct {
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	AppointmentDuration int    `json:"appointmentDuration"`
	MaxAppointments     int    `json:"maxAppointments"`
}

// Summary returns the condensed schedule block for availability responses.
func (s *WeeklySchedule) Summary() *Summary {
	return &Summary{
		StartTime:           s.StartTime,
		EndTime:             s.EndTime,
		AppointmentDuration: s.SlotDurationMinutes,
		MaxAppointments:     s.MaxAppointments,
	}
}
