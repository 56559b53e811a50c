package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const slotColumns = `id, definition_id, provider_id, slot_date, start_minute, end_minute,
	start_at, end_at, status, is_available, requires_confirmation,
	patient_id, patient_name, patient_email, patient_phone, visit_reason, booking_notes,
	booked_at, cancelled_at, cancellation_reason, cancelled_by_provider,
	confirmed_at, checked_in_at, completed_at, reminder_sent_at,
	reminder_sent, checked_in, completed, no_show,
	provider_notes, actual_duration_minutes, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(
		&s.ID, &s.DefinitionID, &s.ProviderID, &s.Date, &s.StartTime, &s.EndTime,
		&s.StartAt, &s.EndAt, &s.Status, &s.Available, &s.RequiresConfirmation,
		&s.PatientID, &s.PatientName, &s.PatientEmail, &s.PatientPhone, &s.VisitReason, &s.BookingNotes,
		&s.BookedAt, &s.CancelledAt, &s.CancellationReason, &s.CancelledByProvider,
		&s.ConfirmedAt, &s.CheckedInAt, &s.CompletedAt, &s.ReminderSentAt,
		&s.ReminderSent, &s.CheckedIn, &s.Completed, &s.NoShow,
		&s.ProviderNotes, &s.ActualDuration, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("scan slot: %w", err)
	}
	return &s, nil
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	defer rows.Close()
	var slots []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

// InsertSlots writes a generated batch in one transaction and returns how
// many rows were actually inserted. Slots colliding with a live slot on the
// same provider instant are skipped, so regeneration never duplicates or
// overwrites an existing booking.
func (r *PgRepository) InsertSlots(ctx context.Context, slots []Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin insert slots: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for i := range slots {
		s := &slots[i]
		tag, err := tx.Exec(ctx, `
			INSERT INTO availability_slots (
				id, definition_id, provider_id, slot_date, start_minute, end_minute,
				start_at, end_at, status, is_available, requires_confirmation
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (provider_id, slot_date, start_minute)
				WHERE status IN ('available', 'pending_confirmation', 'booked', 'blocked')
				DO NOTHING`,
			s.ID, s.DefinitionID, s.ProviderID, s.Date, s.StartTime, s.EndTime,
			s.StartAt, s.EndAt, s.Status, s.Available, s.RequiresConfirmation,
		)
		if err != nil {
			return 0, fmt.Errorf("insert slot: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit insert slots: %w", err)
	}
	return inserted, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+slotColumns+` FROM availability_slots WHERE id = $1`, id)
	return scanSlot(row)
}

// UpdateSlotTransition persists a slot whose status was changed in memory.
// The update only applies while the stored status still equals from; a miss
// means another writer transitioned the slot first and yields ErrSlotStale.
func (r *PgRepository) UpdateSlotTransition(ctx context.Context, slot *Slot, from SlotStatus) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE availability_slots SET
			status = $3, is_available = $4,
			patient_id = $5, patient_name = $6, patient_email = $7, patient_phone = $8,
			visit_reason = $9, booking_notes = $10,
			booked_at = $11, cancelled_at = $12, cancellation_reason = $13, cancelled_by_provider = $14,
			confirmed_at = $15, checked_in_at = $16, completed_at = $17, reminder_sent_at = $18,
			reminder_sent = $19, checked_in = $20, completed = $21, no_show = $22,
			provider_notes = $23, actual_duration_minutes = $24, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+slotColumns,
		slot.ID, from,
		slot.Status, slot.Available,
		slot.PatientID, slot.PatientName, slot.PatientEmail, slot.PatientPhone,
		slot.VisitReason, slot.BookingNotes,
		slot.BookedAt, slot.CancelledAt, slot.CancellationReason, slot.CancelledByProvider,
		slot.ConfirmedAt, slot.CheckedInAt, slot.CompletedAt, slot.ReminderSentAt,
		slot.ReminderSent, slot.CheckedIn, slot.Completed, slot.NoShow,
		slot.ProviderNotes, slot.ActualDuration,
	)
	updated, err := scanSlot(row)
	if err != nil {
		// The caller loaded the slot moments ago, so a missing row means the
		// guard failed, not that the slot vanished.
		if errors.Is(err, ErrSlotNotFound) {
			return nil, ErrSlotStale
		}
		return nil, err
	}
	return updated, nil
}

// DeleteRegenerableSlots removes the slots a regeneration may rebuild:
// available and blocked ones. Slots holding or having held a booking stay.
func (r *PgRepository) DeleteRegenerableSlots(ctx context.Context, definitionID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM availability_slots
		 WHERE definition_id = $1 AND status IN ('available', 'blocked')`,
		definitionID)
	if err != nil {
		return 0, fmt.Errorf("delete regenerable slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) CountBookedLikeSlots(ctx context.Context, definitionID uuid.UUID, from time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM availability_slots
		 WHERE definition_id = $1
		   AND status IN ('booked', 'pending_confirmation')
		   AND slot_date >= $2`,
		definitionID, from).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count booked slots: %w", err)
	}
	return n, nil
}

func (r *PgRepository) ListSlots(ctx context.Context, q SlotQuery) ([]Slot, error) {
	sql := `SELECT ` + slotColumns + ` FROM availability_slots
		WHERE provider_id = $1 AND slot_date >= $2 AND slot_date <= $3`
	args := []any{q.ProviderID, q.From, q.To}
	if q.DefinitionID != nil {
		args = append(args, *q.DefinitionID)
		sql += fmt.Sprintf(" AND definition_id = $%d", len(args))
	}
	if q.Status != nil {
		args = append(args, *q.Status)
		sql += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, q.Limit, q.Offset)
	sql += fmt.Sprintf(" ORDER BY slot_date, start_minute LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return collectSlots(rows)
}

func (r *PgRepository) SlotCountsByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) (SlotCounts, error) {
	var c SlotCounts
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'available'),
		       COUNT(*) FILTER (WHERE status IN ('booked', 'pending_confirmation'))
		FROM availability_slots
		WHERE provider_id = $1 AND slot_date >= $2 AND slot_date < $3`,
		providerID, from, to).Scan(&c.Total, &c.Available, &c.Booked)
	if err != nil {
		return SlotCounts{}, fmt.Errorf("slot counts by provider: %w", err)
	}
	return c, nil
}

func (r *PgRepository) SlotCountsByDefinition(ctx context.Context, definitionID uuid.UUID, from, to time.Time) (SlotCounts, error) {
	var c SlotCounts
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'available'),
		       COUNT(*) FILTER (WHERE status IN ('booked', 'pending_confirmation'))
		FROM availability_slots
		WHERE definition_id = $1 AND slot_date >= $2 AND slot_date < $3`,
		definitionID, from, to).Scan(&c.Total, &c.Available, &c.Booked)
	if err != nil {
		return SlotCounts{}, fmt.Errorf("slot counts by definition: %w", err)
	}
	return c, nil
}

// FindReminderDue returns booked slots starting between now and until whose
// reminder has not been sent yet.
func (r *PgRepository) FindReminderDue(ctx context.Context, until time.Time) ([]Slot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+slotColumns+` FROM availability_slots
		 WHERE status = 'booked' AND reminder_sent = false
		   AND start_at > now() AND start_at <= $1
		 ORDER BY start_at`,
		until)
	if err != nil {
		return nil, fmt.Errorf("find due reminders: %w", err)
	}
	return collectSlots(rows)
}

// MarkSlotReminderSent flips the reminder flag, guarded so a cancellation or
// a concurrent worker pass cannot double-send.
func (r *PgRepository) MarkSlotReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE availability_slots
		 SET reminder_sent = true, reminder_sent_at = $2, updated_at = now()
		 WHERE id = $1 AND status = 'booked' AND reminder_sent = false`,
		id, at)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
