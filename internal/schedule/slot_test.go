package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func availableSlot() *Slot {
	return &Slot{
		ID:           uuid.New(),
		DefinitionID: uuid.New(),
		ProviderID:   uuid.New(),
		Date:         date(2026, time.January, 7),
		StartTime:    540,
		EndTime:      570,
		StartAt:      time.Date(2026, time.January, 7, 9, 0, 0, 0, time.UTC),
		EndAt:        time.Date(2026, time.January, 7, 9, 30, 0, 0, time.UTC),
		Status:       SlotAvailable,
		Available:    true,
	}
}

func slotInStatus(status SlotStatus) *Slot {
	s := availableSlot()
	s.Status = status
	switch status {
	case SlotAvailable:
	case SlotBlocked, SlotCancelled:
		s.Available = status == SlotCancelled
	default:
		pid := uuid.New()
		name := "Dana Whitfield"
		s.PatientID = &pid
		s.PatientName = &name
		s.Available = false
	}
	return s
}

func testBooking() BookingDetails {
	email := "dana@example.com"
	reason := "Persistent headaches"
	return BookingDetails{
		PatientID:    uuid.New(),
		PatientName:  "Dana Whitfield",
		PatientEmail: &email,
		VisitReason:  &reason,
	}
}

func TestBook_DirectBooking(t *testing.T) {
	slot := availableSlot()
	details := testBooking()
	now := time.Now()

	require.NoError(t, slot.Book(details, now))

	assert.Equal(t, SlotBooked, slot.Status)
	assert.False(t, slot.Available)
	require.NotNil(t, slot.PatientID)
	assert.Equal(t, details.PatientID, *slot.PatientID)
	require.NotNil(t, slot.PatientName)
	assert.Equal(t, "Dana Whitfield", *slot.PatientName)
	assert.Equal(t, details.PatientEmail, slot.PatientEmail)
	require.NotNil(t, slot.BookedAt)
	assert.Equal(t, now, *slot.BookedAt)
}

func TestBook_ApprovalRequiredLandsPending(t *testing.T) {
	slot := availableSlot()
	slot.RequiresConfirmation = true

	require.NoError(t, slot.Book(testBooking(), time.Now()))
	assert.Equal(t, SlotPendingConfirmation, slot.Status)
}

func TestConfirm_PendingBecomesBooked(t *testing.T) {
	slot := slotInStatus(SlotPendingConfirmation)
	now := time.Now()

	require.NoError(t, slot.Confirm(now))
	assert.Equal(t, SlotBooked, slot.Status)
	require.NotNil(t, slot.ConfirmedAt)
	assert.Equal(t, now, *slot.ConfirmedAt)
}

func TestCancel_ClearsOccupantAndReleasesTime(t *testing.T) {
	slot := slotInStatus(SlotBooked)
	now := time.Now()

	require.NoError(t, slot.Cancel("patient request", false, now))

	assert.Equal(t, SlotCancelled, slot.Status)
	assert.True(t, slot.Available, "cancelled time is offerable again")
	assert.Nil(t, slot.PatientID)
	assert.Nil(t, slot.PatientName)
	assert.Nil(t, slot.PatientEmail)
	require.NotNil(t, slot.CancellationReason)
	assert.Equal(t, "patient request", *slot.CancellationReason)
	assert.False(t, slot.CancelledByProvider)
	require.NotNil(t, slot.CancelledAt)
}

func TestCancel_ByProviderFromPending(t *testing.T) {
	slot := slotInStatus(SlotPendingConfirmation)

	require.NoError(t, slot.Cancel("clinic closure", true, time.Now()))
	assert.Equal(t, SlotCancelled, slot.Status)
	assert.True(t, slot.CancelledByProvider)
}

func TestCheckIn_MarksArrival(t *testing.T) {
	slot := slotInStatus(SlotBooked)
	now := time.Now()

	require.NoError(t, slot.CheckIn(now))
	assert.Equal(t, SlotBooked, slot.Status, "check-in does not change status")
	assert.True(t, slot.CheckedIn)
	require.NotNil(t, slot.CheckedInAt)
}

func TestComplete_RecordsOutcome(t *testing.T) {
	slot := slotInStatus(SlotBooked)

	require.NoError(t, slot.Complete("Follow up in two weeks", 45, time.Now()))

	assert.Equal(t, SlotCompleted, slot.Status)
	assert.True(t, slot.Completed)
	require.NotNil(t, slot.ProviderNotes)
	assert.Equal(t, "Follow up in two weeks", *slot.ProviderNotes)
	require.NotNil(t, slot.ActualDuration)
	assert.Equal(t, 45, *slot.ActualDuration)
	assert.NotNil(t, slot.PatientID, "completed visit keeps its occupant")
}

func TestComplete_OmitsEmptyOutcome(t *testing.T) {
	slot := slotInStatus(SlotBooked)

	require.NoError(t, slot.Complete("", 0, time.Now()))
	assert.Nil(t, slot.ProviderNotes)
	assert.Nil(t, slot.ActualDuration)
}

func TestMarkNoShow_KeepsOccupantReleasesTime(t *testing.T) {
	slot := slotInStatus(SlotBooked)

	require.NoError(t, slot.MarkNoShow())

	assert.Equal(t, SlotNoShow, slot.Status)
	assert.True(t, slot.NoShow)
	assert.True(t, slot.Available)
	assert.NotNil(t, slot.PatientID, "no-show keeps the record of who booked")
}

func TestBlockUnblock_RoundTrip(t *testing.T) {
	slot := availableSlot()

	require.NoError(t, slot.Block())
	assert.Equal(t, SlotBlocked, slot.Status)
	assert.False(t, slot.Available)

	require.NoError(t, slot.Unblock())
	assert.Equal(t, SlotAvailable, slot.Status)
	assert.True(t, slot.Available)
}

func TestTransitions_GuardsRejectWrongStatus(t *testing.T) {
	all := []SlotStatus{
		SlotAvailable, SlotPendingConfirmation, SlotBooked, SlotBlocked,
		SlotCancelled, SlotCompleted, SlotNoShow,
	}

	transitions := []struct {
		action  string
		allowed map[SlotStatus]bool
		apply   func(*Slot) error
	}{
		{
			action:  "book",
			allowed: map[SlotStatus]bool{SlotAvailable: true},
			apply:   func(s *Slot) error { return s.Book(testBooking(), time.Now()) },
		},
		{
			action:  "confirm",
			allowed: map[SlotStatus]bool{SlotPendingConfirmation: true},
			apply:   func(s *Slot) error { return s.Confirm(time.Now()) },
		},
		{
			action:  "cancel",
			allowed: map[SlotStatus]bool{SlotBooked: true, SlotPendingConfirmation: true},
			apply:   func(s *Slot) error { return s.Cancel("", false, time.Now()) },
		},
		{
			action:  "check in",
			allowed: map[SlotStatus]bool{SlotBooked: true},
			apply:   func(s *Slot) error { return s.CheckIn(time.Now()) },
		},
		{
			action:  "complete",
			allowed: map[SlotStatus]bool{SlotBooked: true},
			apply:   func(s *Slot) error { return s.Complete("", 0, time.Now()) },
		},
		{
			action:  "mark no-show",
			allowed: map[SlotStatus]bool{SlotBooked: true},
			apply:   func(s *Slot) error { return s.MarkNoShow() },
		},
		{
			action:  "block",
			allowed: map[SlotStatus]bool{SlotAvailable: true},
			apply:   func(s *Slot) error { return s.Block() },
		},
		{
			action:  "unblock",
			allowed: map[SlotStatus]bool{SlotBlocked: true},
			apply:   func(s *Slot) error { return s.Unblock() },
		},
	}

	for _, tr := range transitions {
		for _, status := range all {
			slot := slotInStatus(status)
			before := *slot
			err := tr.apply(slot)

			if tr.allowed[status] {
				assert.NoError(t, err, "%s from %s", tr.action, status)
				continue
			}

			var stateErr *StateConflictError
			require.ErrorAs(t, err, &stateErr, "%s from %s", tr.action, status)
			assert.Equal(t, status, stateErr.Current)
			assert.Equal(t, before, *slot, "%s from %s must not mutate the slot", tr.action, status)
		}
	}
}
