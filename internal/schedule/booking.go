package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/careloop/provider-availability/internal/redis"
)

// GetSlot returns one slot by ID.
func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.repo.GetSlotByID(ctx, id)
}

// ListSlots pages through a provider's slots. A zero From/To defaults to
// the rolling statistics window starting today.
func (s *Service) ListSlots(ctx context.Context, q SlotQuery) ([]Slot, error) {
	if q.From.IsZero() {
		q.From = dateOnly(time.Now())
	}
	if q.To.IsZero() {
		q.To = q.From.AddDate(0, 0, s.cfg.StatsWindowDays)
	}
	if q.To.Before(q.From) {
		return nil, invalidField("to", "to must not be before from")
	}
	if q.Status != nil && !q.Status.valid() {
		return nil, invalidField("status", fmt.Sprintf("unknown slot status %q", *q.Status))
	}
	q.Limit, q.Offset = clampPage(q.Limit, q.Offset)
	return s.repo.ListSlots(ctx, q)
}

// BookSlot claims an available slot for a patient. The slot lock serializes
// concurrent attempts on the same slot; the status is re-checked inside the
// critical section and the write itself is a compare-and-set, so losing a
// race can never overwrite someone else's booking.
func (s *Service) BookSlot(ctx context.Context, slotID uuid.UUID, details BookingDetails) (*Slot, error) {
	if details.PatientID == uuid.Nil {
		return nil, invalidField("patient_id", "patient_id is required")
	}
	if details.PatientName == "" {
		return nil, invalidField("patient_name", "patient_name is required")
	}

	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status != SlotAvailable {
		return nil, &StateConflictError{Action: "book", Current: slot.Status}
	}

	def, err := s.repo.GetDefinitionByID(ctx, slot.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("load slot definition: %w", err)
	}
	if lead := time.Until(slot.StartAt); lead < time.Duration(def.MinAdvanceHours)*time.Hour {
		return nil, invalidField("slot_id",
			fmt.Sprintf("slot must be booked at least %d hour(s) in advance", def.MinAdvanceHours))
	}

	var booked *Slot
	err = s.locker.WithLock(ctx, redisclient.SlotKey(slotID), func(lockCtx context.Context) error {
		current, err := s.repo.GetSlotByID(lockCtx, slotID)
		if err != nil {
			return err
		}
		prev := current.Status
		if err := current.Book(details, time.Now()); err != nil {
			return err
		}
		booked, err = s.repo.UpdateSlotTransition(lockCtx, current, prev)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("slot_id", booked.ID.String()).
		Str("provider_id", booked.ProviderID.String()).
		Str("patient_id", details.PatientID.String()).
		Str("status", string(booked.Status)).
		Msg("slot booked")
	return booked, nil
}

// CancelSlot releases a booked or pending slot and clears its occupant.
func (s *Service) CancelSlot(ctx context.Context, slotID uuid.UUID, reason string, byProvider bool) (*Slot, error) {
	slot, err := s.transitionSlot(ctx, slotID, func(sl *Slot) error {
		return sl.Cancel(reason, byProvider, time.Now())
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().
		Str("slot_id", slot.ID.String()).
		Bool("by_provider", byProvider).
		Msg("slot cancelled")
	return slot, nil
}

// ConfirmSlot approves a pending booking.
func (s *Service) ConfirmSlot(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	slot, err := s.transitionSlot(ctx, slotID, func(sl *Slot) error {
		return sl.Confirm(time.Now())
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("slot_id", slot.ID.String()).Msg("slot confirmed")
	return slot, nil
}

// CheckInSlot marks the patient as arrived for a booked slot.
func (s *Service) CheckInSlot(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	slot, err := s.transitionSlot(ctx, slotID, func(sl *Slot) error {
		return sl.CheckIn(time.Now())
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("slot_id", slot.ID.String()).Msg("patient checked in")
	return slot, nil
}

// CompleteSlot closes out a booked appointment with the provider's notes
// and the actual visit length.
func (s *Service) CompleteSlot(ctx context.Context, slotID uuid.UUID, notes string, actualMinutes int) (*Slot, error) {
	if actualMinutes < 0 {
		return nil, invalidField("actual_duration_minutes", "must not be negative")
	}
	slot, err := s.transitionSlot(ctx, slotID, func(sl *Slot) error {
		return sl.Complete(notes, actualMinutes, time.Now())
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("slot_id", slot.ID.String()).Msg("appointment completed")
	return slot, nil
}

// MarkSlotNoShow records that the patient never arrived.
func (s *Service) MarkSlotNoShow(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	slot, err := s.transitionSlot(ctx, slotID, func(sl *Slot) error {
		return sl.MarkNoShow()
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("slot_id", slot.ID.String()).Msg("slot marked no-show")
	return slot, nil
}

// BlockSlot withdraws an available slot from booking.
func (s *Service) BlockSlot(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	slot, err := s.transitionSlot(ctx, slotID, func(sl *Slot) error {
		return sl.Block()
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("slot_id", slot.ID.String()).Msg("slot blocked")
	return slot, nil
}

// UnblockSlot returns a blocked slot to the bookable pool.
func (s *Service) UnblockSlot(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	slot, err := s.transitionSlot(ctx, slotID, func(sl *Slot) error {
		return sl.Unblock()
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("slot_id", slot.ID.String()).Msg("slot unblocked")
	return slot, nil
}

// transitionSlot loads a slot, applies an in-memory transition and persists
// it with a compare-and-set on the loaded status. Guard failures surface as
// StateConflictError before any write; a lost race surfaces as ErrSlotStale.
func (s *Service) transitionSlot(ctx context.Context, slotID uuid.UUID, apply func(*Slot) error) (*Slot, error) {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	prev := slot.Status
	if err := apply(slot); err != nil {
		return nil, err
	}
	return s.repo.UpdateSlotTransition(ctx, slot, prev)
}
