package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool the repository uses. Tests substitute a
// pgxmock pool through NewPgRepositoryWithDB.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PgRepository implements Repository on PostgreSQL.
type PgRepository struct {
	db DB
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool}
}

func NewPgRepositoryWithDB(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const providerColumns = `id, name, specialty, active, created_at, updated_at`

const definitionColumns = `id, provider_id, title, description, recurrence, day_of_week,
	start_date, end_date, start_minute, end_minute, slot_duration_minutes, buffer_minutes,
	timezone, location_kind, location_detail, appointment_kind, max_advance_days,
	min_advance_hours, allow_online_booking, requires_approval, excluded_dates,
	active, created_at, updated_at`

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("scan provider: %w", err)
	}
	return &p, nil
}

func scanDefinition(row pgx.Row) (*Definition, error) {
	var d Definition
	err := row.Scan(
		&d.ID, &d.ProviderID, &d.Title, &d.Description, &d.Recurrence, &d.DayOfWeek,
		&d.StartDate, &d.EndDate, &d.StartTime, &d.EndTime, &d.SlotDuration, &d.Buffer,
		&d.Timezone, &d.LocationKind, &d.LocationDetail, &d.AppointmentKind, &d.MaxAdvanceDays,
		&d.MinAdvanceHours, &d.AllowOnlineBooking, &d.RequiresApproval, &d.ExcludedDates,
		&d.Active, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("scan definition: %w", err)
	}
	return &d, nil
}

func collectDefinitions(rows pgx.Rows) ([]Definition, error) {
	defer rows.Close()
	var defs []Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *d)
	}
	return defs, rows.Err()
}

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE id = $1`, id)
	return scanProvider(row)
}

func (r *PgRepository) CreateDefinition(ctx context.Context, def *Definition) (*Definition, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO schedule_definitions (
			id, provider_id, title, description, recurrence, day_of_week,
			start_date, end_date, start_minute, end_minute, slot_duration_minutes, buffer_minutes,
			timezone, location_kind, location_detail, appointment_kind, max_advance_days,
			min_advance_hours, allow_online_booking, requires_approval, excluded_dates, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING `+definitionColumns,
		def.ID, def.ProviderID, def.Title, def.Description, def.Recurrence, def.DayOfWeek,
		def.StartDate, def.EndDate, def.StartTime, def.EndTime, def.SlotDuration, def.Buffer,
		def.Timezone, def.LocationKind, def.LocationDetail, def.AppointmentKind, def.MaxAdvanceDays,
		def.MinAdvanceHours, def.AllowOnlineBooking, def.RequiresApproval, def.ExcludedDates, def.Active,
	)
	return scanDefinition(row)
}

func (r *PgRepository) UpdateDefinition(ctx context.Context, def *Definition) (*Definition, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE schedule_definitions SET
			title = $2, description = $3, recurrence = $4, day_of_week = $5,
			start_date = $6, end_date = $7, start_minute = $8, end_minute = $9,
			slot_duration_minutes = $10, buffer_minutes = $11, timezone = $12,
			location_kind = $13, location_detail = $14, appointment_kind = $15,
			max_advance_days = $16, min_advance_hours = $17, allow_online_booking = $18,
			requires_approval = $19, excluded_dates = $20, updated_at = now()
		WHERE id = $1
		RETURNING `+definitionColumns,
		def.ID, def.Title, def.Description, def.Recurrence, def.DayOfWeek,
		def.StartDate, def.EndDate, def.StartTime, def.EndTime,
		def.SlotDuration, def.Buffer, def.Timezone,
		def.LocationKind, def.LocationDetail, def.AppointmentKind,
		def.MaxAdvanceDays, def.MinAdvanceHours, def.AllowOnlineBooking,
		def.RequiresApproval, def.ExcludedDates,
	)
	return scanDefinition(row)
}

func (r *PgRepository) GetDefinitionByID(ctx context.Context, id uuid.UUID) (*Definition, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+definitionColumns+` FROM schedule_definitions WHERE id = $1`, id)
	return scanDefinition(row)
}

func (r *PgRepository) ListDefinitionsByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]Definition, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+definitionColumns+` FROM schedule_definitions
		 WHERE provider_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		providerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	return collectDefinitions(rows)
}

func (r *PgRepository) ListActiveDefinitionsByProvider(ctx context.Context, providerID uuid.UUID) ([]Definition, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+definitionColumns+` FROM schedule_definitions
		 WHERE provider_id = $1 AND active
		 ORDER BY created_at`,
		providerID)
	if err != nil {
		return nil, fmt.Errorf("list active definitions: %w", err)
	}
	return collectDefinitions(rows)
}

func (r *PgRepository) ListActiveDefinitions(ctx context.Context) ([]Definition, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+definitionColumns+` FROM schedule_definitions WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active definitions: %w", err)
	}
	return collectDefinitions(rows)
}

func (r *PgRepository) SearchDefinitions(ctx context.Context, providerID uuid.UUID, term string) ([]Definition, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+definitionColumns+` FROM schedule_definitions
		 WHERE provider_id = $1 AND active
		   AND (title ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
		 ORDER BY created_at DESC`,
		providerID, term)
	if err != nil {
		return nil, fmt.Errorf("search definitions: %w", err)
	}
	return collectDefinitions(rows)
}

func (r *PgRepository) SetDefinitionActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE schedule_definitions SET active = $2, updated_at = now() WHERE id = $1`,
		id, active)
	if err != nil {
		return fmt.Errorf("set definition active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDefinitionNotFound
	}
	return nil
}

func (r *PgRepository) DefinitionCounts(ctx context.Context, providerID uuid.UUID) (DefinitionCounts, error) {
	var c DefinitionCounts
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE active),
		       COUNT(*) FILTER (WHERE active AND allow_online_booking),
		       COALESCE(AVG(slot_duration_minutes) FILTER (WHERE active), 0)
		FROM schedule_definitions
		WHERE provider_id = $1`,
		providerID).Scan(&c.Total, &c.Active, &c.Bookable, &c.AvgSlotDuration)
	if err != nil {
		return DefinitionCounts{}, fmt.Errorf("definition counts: %w", err)
	}
	return c, nil
}
