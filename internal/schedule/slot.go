package schedule

import (
	"time"

	"github.com/google/uuid"
)

// SlotStatus is the lifecycle state of an availability slot.
type SlotStatus string

const (
	SlotAvailable           SlotStatus = "available"
	SlotPendingConfirmation SlotStatus = "pending_confirmation"
	SlotBooked              SlotStatus = "booked"
	SlotBlocked             SlotStatus = "blocked"
	SlotCancelled           SlotStatus = "cancelled"
	SlotCompleted           SlotStatus = "completed"
	SlotNoShow              SlotStatus = "no_show"
)

func (s SlotStatus) valid() bool {
	switch s {
	case SlotAvailable, SlotPendingConfirmation, SlotBooked, SlotBlocked,
		SlotCancelled, SlotCompleted, SlotNoShow:
		return true
	}
	return false
}

// Live reports whether the slot still occupies its provider instant.
// Terminal statuses release the (provider, date, start) key so the
// generator may offer the time again.
func (s SlotStatus) Live() bool {
	switch s {
	case SlotAvailable, SlotPendingConfirmation, SlotBooked, SlotBlocked:
		return true
	}
	return false
}

// Slot is one concrete bookable unit generated from a definition.
type Slot struct {
	ID           uuid.UUID
	DefinitionID uuid.UUID
	ProviderID   uuid.UUID

	Date      time.Time
	StartTime TimeOfDay
	EndTime   TimeOfDay
	// StartAt and EndAt are the absolute instants of the slot, computed in
	// the definition's timezone at generation time.
	StartAt time.Time
	EndAt   time.Time

	Status SlotStatus
	// Available is the general-availability flag. Status is authoritative
	// for transition guards; this flag tracks whether the time is offered.
	Available            bool
	RequiresConfirmation bool

	PatientID    *uuid.UUID
	PatientName  *string
	PatientEmail *string
	PatientPhone *string
	VisitReason  *string
	BookingNotes *string

	BookedAt            *time.Time
	CancelledAt         *time.Time
	CancellationReason  *string
	CancelledByProvider bool
	ConfirmedAt         *time.Time
	CheckedInAt         *time.Time
	CompletedAt         *time.Time

	ReminderSent   bool
	ReminderSentAt *time.Time
	CheckedIn      bool
	Completed      bool
	NoShow         bool

	ProviderNotes  *string
	ActualDuration *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookingDetails is the occupant information captured when a slot is booked.
type BookingDetails struct {
	PatientID    uuid.UUID
	PatientName  string
	PatientEmail *string
	PatientPhone *string
	VisitReason  *string
	Notes        *string
}

// Book claims an available slot for a patient. Slots generated from an
// approval-requiring definition land in pending_confirmation, all others go
// straight to booked.
func (s *Slot) Book(d BookingDetails, now time.Time) error {
	if s.Status != SlotAvailable {
		return &StateConflictError{Action: "book", Current: s.Status}
	}
	if s.RequiresConfirmation {
		s.Status = SlotPendingConfirmation
	} else {
		s.Status = SlotBooked
	}
	s.Available = false
	pid := d.PatientID
	name := d.PatientName
	s.PatientID = &pid
	s.PatientName = &name
	s.PatientEmail = d.PatientEmail
	s.PatientPhone = d.PatientPhone
	s.VisitReason = d.VisitReason
	s.BookingNotes = d.Notes
	s.BookedAt = &now
	return nil
}

// Confirm approves a pending booking.
func (s *Slot) Confirm(now time.Time) error {
	if s.Status != SlotPendingConfirmation {
		return &StateConflictError{Action: "confirm", Current: s.Status}
	}
	s.Status = SlotBooked
	s.ConfirmedAt = &now
	return nil
}

// Cancel releases a booked or pending slot. Occupant fields are cleared and
// the time becomes offerable again.
func (s *Slot) Cancel(reason string, byProvider bool, now time.Time) error {
	if s.Status != SlotBooked && s.Status != SlotPendingConfirmation {
		return &StateConflictError{Action: "cancel", Current: s.Status}
	}
	s.Status = SlotCancelled
	s.Available = true
	s.CancelledAt = &now
	s.CancelledByProvider = byProvider
	if reason != "" {
		s.CancellationReason = &reason
	}
	s.clearOccupant()
	return nil
}

// CheckIn marks the patient as arrived.
func (s *Slot) CheckIn(now time.Time) error {
	if s.Status != SlotBooked {
		return &StateConflictError{Action: "check in", Current: s.Status}
	}
	s.CheckedIn = true
	s.CheckedInAt = &now
	return nil
}

// Complete closes out a booked appointment, recording the provider's notes
// and the actual visit length when given.
func (s *Slot) Complete(notes string, actualMinutes int, now time.Time) error {
	if s.Status != SlotBooked {
		return &StateConflictError{Action: "complete", Current: s.Status}
	}
	s.Status = SlotCompleted
	s.Completed = true
	s.CompletedAt = &now
	if notes != "" {
		s.ProviderNotes = &notes
	}
	if actualMinutes > 0 {
		s.ActualDuration = &actualMinutes
	}
	return nil
}

// MarkNoShow records that the patient never arrived. The occupant is kept
// for the record; the instant itself is released for regeneration.
func (s *Slot) MarkNoShow() error {
	if s.Status != SlotBooked {
		return &StateConflictError{Action: "mark no-show", Current: s.Status}
	}
	s.Status = SlotNoShow
	s.NoShow = true
	s.Available = true
	return nil
}

// Block withdraws an available slot from booking without deleting it.
func (s *Slot) Block() error {
	if s.Status != SlotAvailable {
		return &StateConflictError{Action: "block", Current: s.Status}
	}
	s.Status = SlotBlocked
	s.Available = false
	return nil
}

// Unblock returns a blocked slot to the bookable pool.
func (s *Slot) Unblock() error {
	if s.Status != SlotBlocked {
		return &StateConflictError{Action: "unblock", Current: s.Status}
	}
	s.Status = SlotAvailable
	s.Available = true
	return nil
}

func (s *Slot) clearOccupant() {
	s.PatientID = nil
	s.PatientName = nil
	s.PatientEmail = nil
	s.PatientPhone = nil
	s.VisitReason = nil
	s.BookingNotes = nil
}
