package timeslot

import (
	"errors"
	"testing"
	"time"
)

// A Monday well in the future relative to the fixed "now" used below.
var futureMonday = time.Date(2031, 6, 2, 0, 0, 0, 0, time.UTC)

var fixedNow = time.Date(2031, 1, 15, 10, 0, 0, 0, time.UTC)

func times(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Time
	}
	return out
}

func assertTimes(t *testing.T, slots []Slot, want []string) {
	t.Helper()
	got := times(slots)
	if len(got) != len(want) {
		t.Fatalf("expected %d slots %v, got %d: %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slot %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestGenerate_MorningWindow(t *testing.T) {
	day := &DaySchedule{StartTime: "09:00", EndTime: "12:00", IsAvailable: true, DurationMinutes: 30}
	slots, err := Generate(day, futureMonday, nil, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTimes(t, slots, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"})
}

func TestGenerate_BookedTimesExcluded(t *testing.T) {
	day := &DaySchedule{StartTime: "09:00", EndTime: "12:00", IsAvailable: true, DurationMinutes: 30}
	slots, err := Generate(day, futureMonday, map[string]bool{"10:00": true}, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTimes(t, slots, []string{"09:00", "09:30", "10:30", "11:00", "11:30"})
}

func TestGenerate_BreakExcluded(t *testing.T) {
	day := &DaySchedule{
		StartTime: "09:00", EndTime: "17:00", IsAvailable: true, DurationMinutes: 30,
		Breaks: []Break{{StartTime: "12:00", EndTime: "13:00"}},
	}
	slots, err := Generate(day, futureMonday, nil, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range slots {
		if s.Time == "12:00" || s.Time == "12:30" {
			t.Errorf("slot %s should be excluded by the break", s.Time)
		}
	}
	found := false
	for _, s := range slots {
		if s.Time == "13:00" {
			found = true
		}
	}
	if !found {
		t.Error("slot starting exactly at break end should be generated")
	}
}

func TestGenerate_OverlappingBreaksTolerated(t *testing.T) {
	day := &DaySchedule{
		StartTime: "09:00", EndTime: "12:00", IsAvailable: true, DurationMinutes: 30,
		Breaks: []Break{
			{StartTime: "10:00", EndTime: "11:00"},
			{StartTime: "10:30", EndTime: "11:30"},
		},
	}
	slots, err := Generate(day, futureMonday, nil, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTimes(t, slots, []string{"09:00", "09:30", "11:30"})
}

func TestGenerate_SameDayLeadBuffer(t *testing.T) {
	day := &DaySchedule{StartTime: "09:00", EndTime: "17:00", IsAvailable: true, DurationMinutes: 30}
	// now is 10:00 on the target date: everything at or before 10:30 is skipped.
	now := time.Date(2031, 6, 2, 10, 0, 0, 0, time.UTC)
	slots, err := Generate(day, futureMonday, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range slots {
		m, _ := ToMinutes(s.Time)
		if m <= 10*60+30 {
			t.Errorf("slot %s violates the same-day lead buffer", s.Time)
		}
	}
	if len(slots) == 0 || slots[0].Time != "11:00" {
		t.Errorf("expected first slot 11:00, got %v", times(slots))
	}
}

func TestGenerate_BufferIndependentOfStep(t *testing.T) {
	day := &DaySchedule{StartTime: "09:00", EndTime: "12:00", IsAvailable: true, DurationMinutes: 10}
	now := time.Date(2031, 6, 2, 10, 0, 0, 0, time.UTC)
	slots, err := Generate(day, futureMonday, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10:30 is exactly at the cutoff and must be skipped; 10:40 is the first offered.
	if len(slots) == 0 || slots[0].Time != "10:40" {
		t.Errorf("expected first slot 10:40, got %v", times(slots))
	}
}

func TestGenerate_UnavailableDayIsEmpty(t *testing.T) {
	day := &DaySchedule{StartTime: "09:00", EndTime: "17:00", IsAvailable: false, DurationMinutes: 30}
	slots, err := Generate(day, futureMonday, nil, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no slots for unavailable day, got %v", times(slots))
	}
}

func TestGenerate_NilDayIsEmpty(t *testing.T) {
	slots, err := Generate(nil, futureMonday, nil, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no slots for missing schedule, got %v", times(slots))
	}
}

func TestGenerate_NonPositiveDuration(t *testing.T) {
	for _, d := range []int{0, -15} {
		day := &DaySchedule{StartTime: "09:00", EndTime: "17:00", IsAvailable: true, DurationMinutes: d}
		if _, err := Generate(day, futureMonday, nil, fixedNow); !errors.Is(err, ErrInvalidSlotDuration) {
			t.Errorf("duration %d: expected ErrInvalidSlotDuration, got %v", d, err)
		}
	}
}

func TestGenerate_WindowNotMultipleOfStep(t *testing.T) {
	// 09:00-10:45 with 30-minute steps: starts stay on the half-hour grid and
	// stop before the window end.
	day := &DaySchedule{StartTime: "09:00", EndTime: "10:45", IsAvailable: true, DurationMinutes: 30}
	slots, err := Generate(day, futureMonday, nil, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTimes(t, slots, []string{"09:00", "09:30", "10:00", "10:30"})
}

func TestGenerate_StartDateTime(t *testing.T) {
	day := &DaySchedule{StartTime: "09:00", EndTime: "10:00", IsAvailable: true, DurationMinutes: 30}
	slots, err := Generate(day, futureMonday, nil, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2031, 6, 2, 9, 0, 0, 0, time.UTC)
	if !slots[0].StartDateTime.Equal(want) {
		t.Errorf("expected start %v, got %v", want, slots[0].StartDateTime)
	}
	if !slots[0].Available {
		t.Error("generated slots must be marked available")
	}
}

func TestGenerate_InvalidScheduleTimes(t *testing.T) {
	day := &DaySchedule{StartTime: "9am", EndTime: "17:00", IsAvailable: true, DurationMinutes: 30}
	if _, err := Generate(day, futureMonday, nil, fixedNow); err == nil {
		t.Error("expected error for malformed start time")
	}
	day = &DaySchedule{
		StartTime: "09:00", EndTime: "17:00", IsAvailable: true, DurationMinutes: 30,
		Breaks: []Break{{StartTime: "12:00", EndTime: "25:00"}},
	}
	if _, err := Generate(day, futureMonday, nil, fixedNow); err == nil {
		t.Error("expected error for malformed break time")
	}
}
