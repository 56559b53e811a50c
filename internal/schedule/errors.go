package schedule

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidationError reports malformed or out-of-range input. It is always
// raised before any write, so the caller can correct the input and retry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalidField(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConflictDetail identifies one existing definition that overlaps a candidate.
type ConflictDetail struct {
	DefinitionID uuid.UUID
	Title        string
	TimeRange    string
}

// ConflictError carries the full set of conflicting definitions so the
// caller sees every overlap at once, not just the first.
type ConflictError struct {
	Conflicts []ConflictDetail
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule overlaps %d existing definition(s)", len(e.Conflicts))
}

func newConflictError(conflicts []Definition) *ConflictError {
	details := make([]ConflictDetail, 0, len(conflicts))
	for i := range conflicts {
		details = append(details, ConflictDetail{
			DefinitionID: conflicts[i].ID,
			Title:        conflicts[i].Title,
			TimeRange:    conflicts[i].TimeRangeLabel(),
		})
	}
	return &ConflictError{Conflicts: details}
}

// StateConflictError reports a slot lifecycle transition attempted from a
// status its guard does not allow. The slot is left unmodified.
type StateConflictError struct {
	Action  string
	Current SlotStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s a slot in status %q", e.Action, e.Current)
}

// HasActiveBookingsError blocks soft deletion of a definition that still
// owns booked or pending slots.
type HasActiveBookingsError struct {
	ActiveSlots int
}

func (e *HasActiveBookingsError) Error() string {
	return fmt.Sprintf("definition still has %d active booking(s)", e.ActiveSlots)
}
