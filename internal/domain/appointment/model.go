// Package appointment owns the booking ledger: one row per (doctor, date, time)
// reservation, with a status lifecycle and cancellation history.
package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status is an appointment's lifecycle state.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

// validTransitions is the forward lifecycle. Cancellation is handled
// separately (any non-terminal state may cancel) and never through here.
var validTransitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCompleted, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// Valid reports whether s is a recognised status value.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// CanTransition reports whether s may move to next via a status update.
func (s Status) CanTransition(next Status) bool {
	for _, t := range validTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Appointment is one row in the booking ledger. Date and Time together name
// the slot; rows in a cancelled or no-show status do not occupy it.
type Appointment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	DoctorID        uuid.UUID  `db:"doctor_id" json:"doctorId"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patientId"`
	Date            time.Time  `db:"date" json:"date"`
	Time            string     `db:"time" json:"time"`
	Status          Status     `db:"status" json:"status"`
	Reason          string     `db:"reason" json:"reason,omitempty"`
	Symptoms        string     `db:"symptoms" json:"symptoms,omitempty"`
	Notes           string     `db:"notes" json:"notes,omitempty"`
	CancelledBy     string     `db:"cancelled_by" json:"cancelledBy,omitempty"`
	CancelledReason string     `db:"cancelled_reason" json:"cancelledReason,omitempty"`
	CancelledAt     *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsActive reports whether the appointment still occupies its slot.
func (a *Appointment) IsActive() bool {
	return a.Status != StatusCancelled && a.Status != StatusNoShow
}
