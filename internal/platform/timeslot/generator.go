package timeslot

import (
	"errors"
	"fmt"
	"time"
)

// SameDayLeadMinutes is the fixed booking lead time for same-day queries: a
// slot starting within this many minutes of "now" is never offered. It is a
// constant buffer, independent of the schedule's slot duration.
const SameDayLeadMinutes = 30

// ErrInvalidSlotDuration is returned when a schedule carries a zero or
// negative slot duration. The generator refuses to guess a default.
var ErrInvalidSlotDuration = errors.New("slot duration must be a positive number of minutes")

// DaySchedule is the slice of a doctor's weekly schedule that applies to a
// single day of the week.
type DaySchedule struct {
	StartTime       string
	EndTime         string
	IsAvailable     bool
	DurationMinutes int
	Breaks          []Break
}

// Break is a sub-interval of the working window during which no slots start.
// Breaks may overlap one another; overlapping entries simply exclude the same
// minutes twice.
type Break struct {
	StartTime string
	EndTime   string
}

// Slot is one bookable opening. Only available slots are ever produced;
// unavailable times are omitted rather than flagged.
type Slot struct {
	Time          string    `json:"time"`
	StartDateTime time.Time `json:"startDateTime"`
	Available     bool      `json:"available"`
}

// Generate expands day into the ordered list of bookable slots on date.
//
// booked holds the "HH:MM" start times of already committed appointments for
// the same doctor and date; those times are skipped. When date is the same
// calendar day as now, slots starting at or before now+SameDayLeadMinutes are
// skipped as well. A slot whose start falls inside any break interval
// [start, end) is excluded; a slot starting exactly at a break's end is
// allowed. Candidate starts advance from the window start in whole steps and
// stop at the window end, so no slot ever starts at an off-grid partial
// offset before the end.
//
// A nil or unavailable day yields no slots and no error.
func Generate(day *DaySchedule, date time.Time, booked map[string]bool, now time.Time) ([]Slot, error) {
	if day == nil || !day.IsAvailable {
		return nil, nil
	}

	start, err := ToMinutes(day.StartTime)
	if err != nil {
		return nil, fmt.Errorf("schedule start time: %w", err)
	}
	end, err := ToMinutes(day.EndTime)
	if err != nil {
		return nil, fmt.Errorf("schedule end time: %w", err)
	}
	step := day.DurationMinutes
	if step <= 0 {
		return nil, ErrInvalidSlotDuration
	}

	type span struct{ start, end int }
	breaks := make([]span, 0, len(day.Breaks))
	for _, b := range day.Breaks {
		bs, err := ToMinutes(b.StartTime)
		if err != nil {
			return nil, fmt.Errorf("break start time: %w", err)
		}
		be, err := ToMinutes(b.EndTime)
		if err != nil {
			return nil, fmt.Errorf("break end time: %w", err)
		}
		breaks = append(breaks, span{bs, be})
	}

	sameDay := date.Year() == now.Year() && date.YearDay() == now.YearDay()
	cutoff := now.Hour()*60 + now.Minute() + SameDayLeadMinutes

	var slots []Slot
	for minute := start; minute < end; minute += step {
		if sameDay && minute <= cutoff {
			continue
		}
		clock := FromMinutes(minute)
		if booked[clock] {
			continue
		}
		inBreak := false
		for _, b := range breaks {
			if minute >= b.start && minute < b.end {
				inBreak = true
				break
			}
		}
		if inBreak {
			continue
		}
		slots = append(slots, Slot{
			Time:          clock,
			StartDateTime: time.Date(date.Year(), date.Month(), date.Day(), minute/60, minute%60, 0, 0, date.Location()),
			Available:     true,
		})
	}
	return slots, nil
}
