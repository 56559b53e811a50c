package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careloop/provider-availability/internal/config"
	redisclient "github.com/careloop/provider-availability/internal/redis"
)

var (
	// ErrAccessDenied means the definition exists but belongs to a
	// different provider than the caller.
	ErrAccessDenied = errors.New("schedule definition belongs to a different provider")
	// ErrProviderInactive rejects writes for providers that exist but are
	// deactivated.
	ErrProviderInactive = errors.New("provider is not active")
	// ErrProviderBusy means another scheduling change holds the provider
	// lock. The caller should retry.
	ErrProviderBusy = errors.New("another scheduling change is in progress for this provider")
	// ErrSlotBeingBooked means the slot lock is held by a concurrent
	// booking attempt.
	ErrSlotBeingBooked = errors.New("slot is currently being booked by someone else")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// DefinitionStats summarizes the slot inventory a definition owns inside
// the rolling statistics window.
type DefinitionStats struct {
	TotalSlots      int
	AvailableSlots  int
	BookedSlots     int
	UtilizationRate float64
	WindowDays      int
}

// DefinitionWithStats pairs a definition with its current slot statistics.
type DefinitionWithStats struct {
	Definition Definition
	Stats      DefinitionStats
}

// ProviderStatistics is the provider-level dashboard aggregate.
type ProviderStatistics struct {
	TotalDefinitions    int
	ActiveDefinitions   int
	BookableDefinitions int
	AvgSlotDuration     float64
	UtilizationRate     float64
	WindowDays          int
}

// Service owns the scheduling workflows: definition lifecycle, slot
// generation and the booking state machine.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config) *Service {
	return &Service{repo: repo, locker: locker, cfg: cfg}
}

// CreateAvailability validates, conflict-checks and persists a new
// definition for the provider, then materializes its initial slots. The
// whole write path runs under the provider lock so two concurrent creates
// cannot slip mutually conflicting definitions past the check.
func (s *Service) CreateAvailability(ctx context.Context, providerID uuid.UUID, in DefinitionInput) (*DefinitionWithStats, error) {
	provider, err := s.repo.GetProviderByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if !provider.Active {
		return nil, ErrProviderInactive
	}

	in.Normalize(s.cfg.AdvanceBookingDays, s.cfg.MinAdvanceHours)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var created *Definition
	err = s.locker.WithLock(ctx, redisclient.ProviderKey(providerID), func(lockCtx context.Context) error {
		existing, err := s.repo.ListActiveDefinitionsByProvider(lockCtx, providerID)
		if err != nil {
			return fmt.Errorf("load provider definitions: %w", err)
		}

		def := &Definition{ID: uuid.New(), ProviderID: providerID, Active: true}
		in.Apply(def)

		if conflicts := FindConflicts(def, existing); len(conflicts) > 0 {
			return newConflictError(conflicts)
		}

		created, err = s.repo.CreateDefinition(lockCtx, def)
		if err != nil {
			return fmt.Errorf("create definition: %w", err)
		}

		_, err = s.generateSlots(lockCtx, created)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrProviderBusy
		}
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("definition_id", created.ID.String()).
		Str("provider_id", providerID.String()).
		Str("recurrence", string(created.Recurrence)).
		Msg("availability created")

	stats, err := s.definitionStats(ctx, created.ID)
	if err != nil {
		return nil, err
	}
	return &DefinitionWithStats{Definition: *created, Stats: stats}, nil
}

// UpdateAvailability modifies an existing definition. When the change
// affects slot shape the regenerable slots are rebuilt; slots holding or
// having held a booking are never touched.
func (s *Service) UpdateAvailability(ctx context.Context, providerID, definitionID uuid.UUID, in DefinitionInput) (*Definition, error) {
	current, err := s.getOwnedDefinition(ctx, providerID, definitionID)
	if err != nil {
		return nil, err
	}

	in.Normalize(s.cfg.AdvanceBookingDays, s.cfg.MinAdvanceHours)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var updated *Definition
	err = s.locker.WithLock(ctx, redisclient.ProviderKey(providerID), func(lockCtx context.Context) error {
		existing, err := s.repo.ListActiveDefinitionsByProvider(lockCtx, providerID)
		if err != nil {
			return fmt.Errorf("load provider definitions: %w", err)
		}

		next := *current
		in.Apply(&next)

		if conflicts := FindConflicts(&next, existing); len(conflicts) > 0 {
			return newConflictError(conflicts)
		}

		updated, err = s.repo.UpdateDefinition(lockCtx, &next)
		if err != nil {
			return fmt.Errorf("update definition: %w", err)
		}

		if !significantChange(current, updated) {
			return nil
		}

		removed, err := s.repo.DeleteRegenerableSlots(lockCtx, updated.ID)
		if err != nil {
			return fmt.Errorf("delete regenerable slots: %w", err)
		}
		inserted, err := s.generateSlots(lockCtx, updated)
		if err != nil {
			return err
		}
		zerolog.Ctx(lockCtx).Info().
			Str("definition_id", updated.ID.String()).
			Int64("removed", removed).
			Int("regenerated", inserted).
			Msg("slots regenerated after schedule change")
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrProviderBusy
		}
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("definition_id", updated.ID.String()).
		Str("provider_id", providerID.String()).
		Msg("availability updated")
	return updated, nil
}

// DeleteAvailability soft-deletes a definition. The delete is refused while
// the definition still owns booked or pending slots from today onward, so a
// provider must resolve upcoming appointments first.
func (s *Service) DeleteAvailability(ctx context.Context, providerID, definitionID uuid.UUID) error {
	current, err := s.repo.GetDefinitionByID(ctx, definitionID)
	if err != nil {
		return err
	}
	if current.ProviderID != providerID {
		return ErrAccessDenied
	}
	if !current.Active {
		// Already deleted; deleting again is a no-op.
		return nil
	}

	err = s.locker.WithLock(ctx, redisclient.ProviderKey(providerID), func(lockCtx context.Context) error {
		active, err := s.repo.CountBookedLikeSlots(lockCtx, definitionID, dateOnly(time.Now()))
		if err != nil {
			return fmt.Errorf("count active bookings: %w", err)
		}
		if active > 0 {
			return &HasActiveBookingsError{ActiveSlots: active}
		}
		return s.repo.SetDefinitionActive(lockCtx, definitionID, false)
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return ErrProviderBusy
		}
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("definition_id", definitionID.String()).
		Str("provider_id", providerID.String()).
		Msg("availability deleted")
	return nil
}

// GetAvailability returns one definition with its slot statistics.
func (s *Service) GetAvailability(ctx context.Context, providerID, definitionID uuid.UUID) (*DefinitionWithStats, error) {
	def, err := s.getOwnedDefinition(ctx, providerID, definitionID)
	if err != nil {
		return nil, err
	}
	stats, err := s.definitionStats(ctx, def.ID)
	if err != nil {
		return nil, err
	}
	return &DefinitionWithStats{Definition: *def, Stats: stats}, nil
}

// ListAvailabilities pages through a provider's definitions, soft-deleted
// ones included, newest first.
func (s *Service) ListAvailabilities(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]Definition, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListDefinitionsByProvider(ctx, providerID, limit, offset)
}

// SearchAvailabilities matches the term against titles and descriptions of
// the provider's active definitions.
func (s *Service) SearchAvailabilities(ctx context.Context, providerID uuid.UUID, term string) ([]Definition, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, invalidField("q", "search term is required")
	}
	return s.repo.SearchDefinitions(ctx, providerID, term)
}

// GetStatistics aggregates a provider's definitions and the slot inventory
// inside the rolling window starting today.
func (s *Service) GetStatistics(ctx context.Context, providerID uuid.UUID) (*ProviderStatistics, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		return nil, err
	}

	defCounts, err := s.repo.DefinitionCounts(ctx, providerID)
	if err != nil {
		return nil, err
	}
	from := dateOnly(time.Now())
	to := from.AddDate(0, 0, s.cfg.StatsWindowDays)
	slotCounts, err := s.repo.SlotCountsByProvider(ctx, providerID, from, to)
	if err != nil {
		return nil, err
	}

	return &ProviderStatistics{
		TotalDefinitions:    defCounts.Total,
		ActiveDefinitions:   defCounts.Active,
		BookableDefinitions: defCounts.Bookable,
		AvgSlotDuration:     defCounts.AvgSlotDuration,
		UtilizationRate:     utilization(slotCounts),
		WindowDays:          s.cfg.StatsWindowDays,
	}, nil
}

// ExtendSlotHorizons tops up the slot inventory of every active definition
// so the advance-booking horizon keeps rolling forward. Definitions whose
// provider lock is contended are skipped and picked up on the next pass.
func (s *Service) ExtendSlotHorizons(ctx context.Context) (int, error) {
	defs, err := s.repo.ListActiveDefinitions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active definitions: %w", err)
	}

	total := 0
	for i := range defs {
		def := defs[i]
		err := s.locker.WithLock(ctx, redisclient.ProviderKey(def.ProviderID), func(lockCtx context.Context) error {
			inserted, err := s.generateSlots(lockCtx, &def)
			total += inserted
			return err
		})
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			zerolog.Ctx(ctx).Debug().
				Str("definition_id", def.ID.String()).
				Msg("provider lock contended, skipping horizon top-up")
		case err != nil:
			zerolog.Ctx(ctx).Warn().Err(err).
				Str("definition_id", def.ID.String()).
				Msg("horizon top-up failed")
		}
	}
	return total, nil
}

// MarkDueReminders flags booked slots that start within the configured lead
// time. Returns how many reminders were newly marked.
func (s *Service) MarkDueReminders(ctx context.Context) (int, error) {
	until := time.Now().Add(s.cfg.ReminderLead)
	due, err := s.repo.FindReminderDue(ctx, until)
	if err != nil {
		return 0, fmt.Errorf("find due reminders: %w", err)
	}

	marked := 0
	for i := range due {
		ok, err := s.repo.MarkSlotReminderSent(ctx, due[i].ID, time.Now())
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).
				Str("slot_id", due[i].ID.String()).
				Msg("failed to mark reminder")
			continue
		}
		if ok {
			marked++
			zerolog.Ctx(ctx).Debug().
				Str("slot_id", due[i].ID.String()).
				Time("start_at", due[i].StartAt).
				Msg("reminder marked")
		}
	}
	return marked, nil
}

// generateSlots materializes the definition's slots inside its generation
// window and returns how many new rows landed. Instants already occupied by
// a live slot are skipped by the insert itself.
func (s *Service) generateSlots(ctx context.Context, def *Definition) (int, error) {
	from, to := GenerationWindow(def, time.Now())
	if from.After(to) {
		return 0, nil
	}
	slots := GenerateSlotsForRange(def, from, to)
	if len(slots) == 0 {
		return 0, nil
	}
	inserted, err := s.repo.InsertSlots(ctx, slots)
	if err != nil {
		return 0, fmt.Errorf("insert generated slots: %w", err)
	}
	zerolog.Ctx(ctx).Info().
		Str("definition_id", def.ID.String()).
		Int("generated", len(slots)).
		Int("inserted", inserted).
		Msg("slots generated")
	return inserted, nil
}

// getOwnedDefinition loads an active definition and checks the caller owns
// it. Soft-deleted definitions are reported as not found.
func (s *Service) getOwnedDefinition(ctx context.Context, providerID, definitionID uuid.UUID) (*Definition, error) {
	def, err := s.repo.GetDefinitionByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	if def.ProviderID != providerID {
		return nil, ErrAccessDenied
	}
	if !def.Active {
		return nil, ErrDefinitionNotFound
	}
	return def, nil
}

func (s *Service) definitionStats(ctx context.Context, definitionID uuid.UUID) (DefinitionStats, error) {
	from := dateOnly(time.Now())
	to := from.AddDate(0, 0, s.cfg.StatsWindowDays)
	counts, err := s.repo.SlotCountsByDefinition(ctx, definitionID, from, to)
	if err != nil {
		return DefinitionStats{}, err
	}
	return DefinitionStats{
		TotalSlots:      counts.Total,
		AvailableSlots:  counts.Available,
		BookedSlots:     counts.Booked,
		UtilizationRate: utilization(counts),
		WindowDays:      s.cfg.StatsWindowDays,
	}, nil
}

// significantChange reports whether the update moved any field that shapes
// generated slots. Title, description, location and policy tweaks keep the
// existing inventory.
func significantChange(old, next *Definition) bool {
	if old.StartTime != next.StartTime || old.EndTime != next.EndTime {
		return true
	}
	if old.SlotDuration != next.SlotDuration || old.Buffer != next.Buffer {
		return true
	}
	if !sameDate(old.StartDate, next.StartDate) || !sameOptionalDate(old.EndDate, next.EndDate) {
		return true
	}
	if old.Recurrence != next.Recurrence || old.DayOfWeek != next.DayOfWeek {
		return true
	}
	if old.Timezone != next.Timezone {
		return true
	}
	return !sameDateSet(old.ExcludedDates, next.ExcludedDates)
}

func sameOptionalDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return sameDate(*a, *b)
}

func sameDateSet(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for _, d := range a {
		found := false
		for _, e := range b {
			if sameDate(d, e) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func utilization(c SlotCounts) float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Booked) / float64(c.Total)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
