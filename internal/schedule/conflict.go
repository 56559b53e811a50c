package schedule

// Conflicts reports whether two definitions owned by the same provider can
// produce overlapping slots. Definitions of different providers never
// conflict.
//
// The check is deliberately conservative: date ranges and daily time windows
// must both overlap, and only when both definitions are weekly does a
// differing weekday rule the overlap out. A daily definition therefore
// conflicts with any weekly one sharing its window, even though the weekly
// side only occupies one day in seven.
func Conflicts(a, b *Definition) bool {
	if a.ProviderID != b.ProviderID {
		return false
	}
	if dateOnly(a.StartDate).After(b.EffectiveEndDate()) || dateOnly(b.StartDate).After(a.EffectiveEndDate()) {
		return false
	}
	// Strict overlap: windows that merely touch do not conflict.
	if a.StartTime >= b.EndTime || b.StartTime >= a.EndTime {
		return false
	}
	if a.Recurrence == RecurrenceWeekly && b.Recurrence == RecurrenceWeekly {
		return a.DayOfWeek == b.DayOfWeek
	}
	return true
}

// FindConflicts returns every active definition in existing that conflicts
// with the candidate. The candidate itself is skipped so updates do not
// collide with their own stored row.
func FindConflicts(candidate *Definition, existing []Definition) []Definition {
	var conflicts []Definition
	for i := range existing {
		other := &existing[i]
		if other.ID == candidate.ID || !other.Active {
			continue
		}
		if Conflicts(candidate, other) {
			conflicts = append(conflicts, *other)
		}
	}
	return conflicts
}
