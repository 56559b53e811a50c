package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// conflictPair builds two Wednesday clinics for the same provider with
// overlapping windows, the baseline conflicting case.
func conflictPair() (*Definition, *Definition) {
	a := wednesdayClinic()
	b := wednesdayClinic()
	b.ID = uuid.New()
	b.ProviderID = a.ProviderID
	b.StartTime = 600 // 10:00, inside a's 09:00-11:00
	b.EndTime = 720
	return a, b
}

func TestConflicts_OverlapSameWeekday(t *testing.T) {
	a, b := conflictPair()

	assert.True(t, Conflicts(a, b))
	assert.True(t, Conflicts(b, a), "conflict detection is symmetric")
}

func TestConflicts_DifferentProviders(t *testing.T) {
	a, b := conflictPair()
	b.ProviderID = uuid.New()

	assert.False(t, Conflicts(a, b))
}

func TestConflicts_WeeklyDifferentWeekdays(t *testing.T) {
	a, b := conflictPair()
	b.DayOfWeek = 4

	assert.False(t, Conflicts(a, b))
	assert.False(t, Conflicts(b, a))
}

func TestConflicts_TouchingWindowsDoNotConflict(t *testing.T) {
	a, b := conflictPair()
	b.StartTime = a.EndTime // 11:00-...
	b.EndTime = a.EndTime + 120

	assert.False(t, Conflicts(a, b), "back-to-back windows are allowed")
	assert.False(t, Conflicts(b, a))
}

func TestConflicts_DisjointDateRanges(t *testing.T) {
	a, b := conflictPair()
	bStart := date(2026, time.April, 1)
	bEnd := date(2026, time.June, 30)
	b.StartDate = bStart
	b.EndDate = &bEnd

	assert.False(t, Conflicts(a, b), "b starts after a ends")
	assert.False(t, Conflicts(b, a))
}

func TestConflicts_OpenEndedRangeReachesEverything(t *testing.T) {
	a, b := conflictPair()
	a.EndDate = nil
	b.StartDate = date(2027, time.January, 6)
	b.EndDate = nil

	assert.True(t, Conflicts(a, b), "open-ended a still covers b's start")
}

func TestConflicts_DailyOverlapsWeekly(t *testing.T) {
	a, b := conflictPair()
	b.Recurrence = RecurrenceDaily
	b.DayOfWeek = 0

	// A daily definition occupies every weekday, so the weekday escape
	// hatch does not apply.
	assert.True(t, Conflicts(a, b))
	assert.True(t, Conflicts(b, a))
}

func TestFindConflicts_ReturnsAllOverlaps(t *testing.T) {
	candidate := wednesdayClinic()

	first := wednesdayClinic()
	first.ID = uuid.New()
	first.ProviderID = candidate.ProviderID
	first.Title = "Early consults"

	second := wednesdayClinic()
	second.ID = uuid.New()
	second.ProviderID = candidate.ProviderID
	second.Title = "Walk-ins"
	second.StartTime = 630
	second.EndTime = 750

	unrelated := wednesdayClinic()
	unrelated.ID = uuid.New()
	unrelated.ProviderID = candidate.ProviderID
	unrelated.DayOfWeek = 5

	conflicts := FindConflicts(candidate, []Definition{*first, *second, *unrelated})
	require.Len(t, conflicts, 2, "every overlapping definition is reported")

	titles := []string{conflicts[0].Title, conflicts[1].Title}
	assert.Contains(t, titles, "Early consults")
	assert.Contains(t, titles, "Walk-ins")
}

func TestFindConflicts_SkipsSelfAndInactive(t *testing.T) {
	candidate := wednesdayClinic()

	self := *candidate

	retired := wednesdayClinic()
	retired.ID = uuid.New()
	retired.ProviderID = candidate.ProviderID
	retired.Active = false

	conflicts := FindConflicts(candidate, []Definition{self, *retired})
	assert.Empty(t, conflicts)
}
