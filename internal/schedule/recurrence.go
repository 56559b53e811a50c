package schedule

import (
	"time"

	"github.com/google/uuid"
)

// IsDateActive reports whether the definition offers slots on the given
// calendar date. Inactive definitions, dates outside the definition's range
// and excluded dates never match; otherwise the recurrence decides.
func IsDateActive(def *Definition, date time.Time) bool {
	if !def.Active {
		return false
	}
	d := dateOnly(date)
	if d.Before(dateOnly(def.StartDate)) {
		return false
	}
	if def.EndDate != nil && d.After(dateOnly(*def.EndDate)) {
		return false
	}
	if def.IsExcluded(d) {
		return false
	}
	switch def.Recurrence {
	case RecurrenceOneTime:
		return sameDate(d, def.StartDate)
	case RecurrenceWeekly:
		return isoWeekday(d) == def.DayOfWeek
	case RecurrenceDaily:
		return true
	case RecurrenceCustom:
		return true
	default:
		return false
	}
}

// GenerateDailySlots carves the definition's daily window into slots for one
// date. The cursor starts at StartTime; each slot spans SlotDuration minutes
// and the cursor advances by SlotDuration+Buffer. Generation stops when the
// next slot would cross EndTime, so a trailing remainder shorter than one
// slot is dropped. The caller is responsible for checking IsDateActive.
func GenerateDailySlots(def *Definition, date time.Time) []Slot {
	loc, err := def.Location()
	if err != nil {
		loc = time.UTC
	}
	d := dateOnly(date)
	step := TimeOfDay(def.SlotDuration + def.Buffer)
	span := TimeOfDay(def.SlotDuration)

	var slots []Slot
	for cursor := def.StartTime; cursor+span <= def.EndTime; cursor += step {
		end := cursor + span
		slots = append(slots, Slot{
			ID:                   uuid.New(),
			DefinitionID:         def.ID,
			ProviderID:           def.ProviderID,
			Date:                 d,
			StartTime:            cursor,
			EndTime:              end,
			StartAt:              atMinute(d, cursor, loc),
			EndAt:                atMinute(d, end, loc),
			Status:               SlotAvailable,
			Available:            true,
			RequiresConfirmation: def.RequiresApproval,
		})
	}
	return slots
}

// GenerateSlotsForRange expands the definition over every active date in
// [from, to], both bounds inclusive. The result is deterministic for the
// same definition and bounds, apart from the generated slot IDs.
func GenerateSlotsForRange(def *Definition, from, to time.Time) []Slot {
	var out []Slot
	last := dateOnly(to)
	for d := dateOnly(from); !d.After(last); d = d.AddDate(0, 0, 1) {
		if !IsDateActive(def, d) {
			continue
		}
		out = append(out, GenerateDailySlots(def, d)...)
	}
	return out
}

// GenerationWindow bounds slot materialization: generation never starts in
// the past and never reaches past the advance-booking horizon or the
// definition's own end date. A start after the end means there is nothing
// to generate.
func GenerationWindow(def *Definition, today time.Time) (time.Time, time.Time) {
	start := dateOnly(def.StartDate)
	if t := dateOnly(today); t.After(start) {
		start = t
	}
	end := dateOnly(today).AddDate(0, 0, def.MaxAdvanceDays)
	if def.EndDate != nil && dateOnly(*def.EndDate).Before(end) {
		end = dateOnly(*def.EndDate)
	}
	return start, end
}

// atMinute pins a wall-clock minute of a calendar date to an absolute
// instant in the given timezone.
func atMinute(date time.Time, m TimeOfDay, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), m.Hour(), m.Minute(), 0, 0, loc)
}
