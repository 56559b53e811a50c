package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepositoryWithDB(mock)
}

func TestPgRepository_GetProviderByID(t *testing.T) {
	mock, repo := newMockPool(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM providers").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "specialty", "active", "created_at", "updated_at",
		}).AddRow(id, "Dr. Imani Reyes", nil, true, now, now))

	p, err := repo.GetProviderByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Imani Reyes", p.Name)
	assert.Nil(t, p.Specialty)
	assert.True(t, p.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_GetProviderByID_NotFound(t *testing.T) {
	mock, repo := newMockPool(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM providers").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetProviderByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrProviderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_GetDefinitionByID(t *testing.T) {
	mock, repo := newMockPool(t)
	id := uuid.New()
	providerID := uuid.New()
	now := time.Now()
	start := date(2026, time.January, 7)
	excluded := []time.Time{date(2026, time.January, 14)}

	mock.ExpectQuery("SELECT (.+) FROM schedule_definitions").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "provider_id", "title", "description", "recurrence", "day_of_week",
			"start_date", "end_date", "start_minute", "end_minute", "slot_duration_minutes", "buffer_minutes",
			"timezone", "location_kind", "location_detail", "appointment_kind", "max_advance_days",
			"min_advance_hours", "allow_online_booking", "requires_approval", "excluded_dates",
			"active", "created_at", "updated_at",
		}).AddRow(
			id, providerID, "Morning clinic", nil, RecurrenceWeekly, 3,
			start, nil, TimeOfDay(540), TimeOfDay(660), 30, 0,
			"UTC", LocationInPerson, nil, KindConsultation, 90,
			2, true, false, excluded,
			true, now, now,
		))

	def, err := repo.GetDefinitionByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, providerID, def.ProviderID)
	assert.Equal(t, RecurrenceWeekly, def.Recurrence)
	assert.Equal(t, 3, def.DayOfWeek)
	assert.Nil(t, def.EndDate)
	assert.Equal(t, TimeOfDay(540), def.StartTime)
	require.Len(t, def.ExcludedDates, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_SetDefinitionActive_NotFound(t *testing.T) {
	mock, repo := newMockPool(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE schedule_definitions SET active").
		WithArgs(id, false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SetDefinitionActive(context.Background(), id, false)
	assert.ErrorIs(t, err, ErrDefinitionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_DefinitionCounts(t *testing.T) {
	mock, repo := newMockPool(t)
	providerID := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(providerID).
		WillReturnRows(pgxmock.NewRows([]string{"total", "active", "bookable", "avg"}).
			AddRow(5, 3, 2, 22.5))

	counts, err := repo.DefinitionCounts(context.Background(), providerID)
	require.NoError(t, err)
	assert.Equal(t, DefinitionCounts{Total: 5, Active: 3, Bookable: 2, AvgSlotDuration: 22.5}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_InsertSlots_SkipsCollisions(t *testing.T) {
	mock, repo := newMockPool(t)
	def := wednesdayClinic()
	slots := GenerateDailySlots(def, date(2026, time.January, 7))
	require.Len(t, slots, 4)

	mock.ExpectBegin()
	for i := range slots {
		affected := int64(1)
		if i == 2 {
			affected = 0 // live slot already holds this instant
		}
		mock.ExpectExec("INSERT INTO availability_slots").
			WillReturnResult(pgxmock.NewResult("INSERT", affected))
	}
	mock.ExpectCommit()

	inserted, err := repo.InsertSlots(context.Background(), slots)
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_InsertSlots_EmptyBatch(t *testing.T) {
	_, repo := newMockPool(t)

	inserted, err := repo.InsertSlots(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestPgRepository_UpdateSlotTransition_Stale(t *testing.T) {
	mock, repo := newMockPool(t)
	slot := slotInStatus(SlotBooked)

	mock.ExpectQuery("UPDATE availability_slots SET").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.UpdateSlotTransition(context.Background(), slot, SlotAvailable)
	assert.ErrorIs(t, err, ErrSlotStale)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_DeleteRegenerableSlots(t *testing.T) {
	mock, repo := newMockPool(t)
	defID := uuid.New()

	mock.ExpectExec("DELETE FROM availability_slots").
		WithArgs(defID).
		WillReturnResult(pgxmock.NewResult("DELETE", 12))

	removed, err := repo.DeleteRegenerableSlots(context.Background(), defID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_CountBookedLikeSlots(t *testing.T) {
	mock, repo := newMockPool(t)
	defID := uuid.New()
	from := date(2026, time.January, 7)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM availability_slots`).
		WithArgs(defID, from).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.CountBookedLikeSlots(context.Background(), defID, from)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_SlotCountsByProvider(t *testing.T) {
	mock, repo := newMockPool(t)
	providerID := uuid.New()
	from := date(2026, time.January, 1)
	to := date(2026, time.January, 31)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(providerID, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"total", "available", "booked"}).
			AddRow(40, 31, 9))

	counts, err := repo.SlotCountsByProvider(context.Background(), providerID, from, to)
	require.NoError(t, err)
	assert.Equal(t, SlotCounts{Total: 40, Available: 31, Booked: 9}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_MarkSlotReminderSent(t *testing.T) {
	mock, repo := newMockPool(t)
	id := uuid.New()
	at := time.Now()

	mock.ExpectExec("UPDATE availability_slots").
		WithArgs(id, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.MarkSlotReminderSent(context.Background(), id, at)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec("UPDATE availability_slots").
		WithArgs(id, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err = repo.MarkSlotReminderSent(context.Background(), id, at)
	require.NoError(t, err)
	assert.False(t, ok, "already-sent or cancelled slots are not re-marked")
	assert.NoError(t, mock.ExpectationsWereMet())
}
