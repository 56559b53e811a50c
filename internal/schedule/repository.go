package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProviderNotFound   = errors.New("provider not found")
	ErrDefinitionNotFound = errors.New("schedule definition not found")
	ErrSlotNotFound       = errors.New("availability slot not found")
	// ErrSlotStale is returned when a compare-and-set transition finds the
	// slot no longer in the status the caller loaded. Another writer won.
	ErrSlotStale = errors.New("slot was modified concurrently")
)

// SlotQuery filters a provider's slot listing. From and To bound the slot
// date, both inclusive.
type SlotQuery struct {
	ProviderID   uuid.UUID
	DefinitionID *uuid.UUID
	From         time.Time
	To           time.Time
	Status       *SlotStatus
	Limit        int
	Offset       int
}

// DefinitionCounts aggregates a provider's definitions for statistics.
type DefinitionCounts struct {
	Total           int
	Active          int
	Bookable        int
	AvgSlotDuration float64
}

// SlotCounts aggregates slot inventory within a window. Booked counts both
// booked and pending_confirmation slots, since a pending hold occupies the
// time just as a confirmed booking does.
type SlotCounts struct {
	Total     int
	Available int
	Booked    int
}

// Repository contains all database interactions the service needs.
type Repository interface {
	// Providers.
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)

	// Schedule definitions.
	CreateDefinition(ctx context.Context, def *Definition) (*Definition, error)
	UpdateDefinition(ctx context.Context, def *Definition) (*Definition, error)
	GetDefinitionByID(ctx context.Context, id uuid.UUID) (*Definition, error)
	ListDefinitionsByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]Definition, error)
	ListActiveDefinitionsByProvider(ctx context.Context, providerID uuid.UUID) ([]Definition, error)
	ListActiveDefinitions(ctx context.Context) ([]Definition, error)
	SearchDefinitions(ctx context.Context, providerID uuid.UUID, term string) ([]Definition, error)
	SetDefinitionActive(ctx context.Context, id uuid.UUID, active bool) error
	DefinitionCounts(ctx context.Context, providerID uuid.UUID) (DefinitionCounts, error)

	// Availability slots.
	InsertSlots(ctx context.Context, slots []Slot) (int, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	UpdateSlotTransition(ctx context.Context, slot *Slot, from SlotStatus) (*Slot, error)
	DeleteRegenerableSlots(ctx context.Context, definitionID uuid.UUID) (int64, error)
	CountBookedLikeSlots(ctx context.Context, definitionID uuid.UUID, from time.Time) (int, error)
	ListSlots(ctx context.Context, q SlotQuery) ([]Slot, error)
	SlotCountsByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) (SlotCounts, error)
	SlotCountsByDefinition(ctx context.Context, definitionID uuid.UUID, from, to time.Time) (SlotCounts, error)
	FindReminderDue(ctx context.Context, until time.Time) ([]Slot, error)
	MarkSlotReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}
