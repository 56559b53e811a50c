package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Recurrence selects which dates of a definition's date range produce slots.
type Recurrence string

const (
	RecurrenceOneTime Recurrence = "one_time"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	// RecurrenceCustom is an extension point. Until a pattern evaluator
	// exists, custom definitions are active on every date in their range.
	RecurrenceCustom Recurrence = "custom"
)

func (r Recurrence) valid() bool {
	switch r {
	case RecurrenceOneTime, RecurrenceDaily, RecurrenceWeekly, RecurrenceCustom:
		return true
	}
	return false
}

// LocationKind describes how an appointment in a slot takes place.
type LocationKind string

const (
	LocationInPerson LocationKind = "in_person"
	LocationVirtual  LocationKind = "virtual"
	LocationHybrid   LocationKind = "hybrid"
)

func (k LocationKind) valid() bool {
	switch k {
	case LocationInPerson, LocationVirtual, LocationHybrid:
		return true
	}
	return false
}

// AppointmentKind is the kind of visit the generated slots are offered for.
type AppointmentKind string

const (
	KindConsultation   AppointmentKind = "consultation"
	KindFollowUp       AppointmentKind = "follow_up"
	KindProcedure      AppointmentKind = "procedure"
	KindTherapy        AppointmentKind = "therapy"
	KindEmergency      AppointmentKind = "emergency"
	KindRoutineCheckup AppointmentKind = "routine_checkup"
)

func (k AppointmentKind) valid() bool {
	switch k {
	case KindConsultation, KindFollowUp, KindProcedure, KindTherapy, KindEmergency, KindRoutineCheckup:
		return true
	}
	return false
}

// TimeOfDay is a clock time expressed as minutes from midnight (0..1439).
// Storing minutes keeps slot arithmetic integral and timezone-free until a
// concrete date pins the instant down.
type TimeOfDay int

// ParseTimeOfDay parses an "HH:MM" wall-clock string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Provider is the owner of schedule definitions. Provider accounts are
// managed elsewhere; this service only reads them.
type Provider struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Definition is a recurring availability template owned by one provider.
// The slot generator expands it into concrete AvailabilitySlot rows.
type Definition struct {
	ID          uuid.UUID
	ProviderID  uuid.UUID
	Title       string
	Description *string

	Recurrence Recurrence
	// DayOfWeek is ISO numbered: 1 = Monday .. 7 = Sunday. Zero for
	// non-weekly recurrences.
	DayOfWeek int

	StartDate time.Time
	// EndDate nil means the definition recurs with no end.
	EndDate *time.Time

	StartTime TimeOfDay
	EndTime   TimeOfDay

	SlotDuration int // minutes per slot
	Buffer       int // minutes of gap after each slot
	Timezone     string

	LocationKind   LocationKind
	LocationDetail *string

	AppointmentKind AppointmentKind

	MaxAdvanceDays     int
	MinAdvanceHours    int
	AllowOnlineBooking bool
	RequiresApproval   bool

	ExcludedDates []time.Time

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveEndDate returns the end date, or a far-future stand-in when the
// definition is open ended.
func (d *Definition) EffectiveEndDate() time.Time {
	if d.EndDate == nil {
		return farFutureDate
	}
	return dateOnly(*d.EndDate)
}

// IsExcluded reports whether the given date is on the definition's
// exclusion list.
func (d *Definition) IsExcluded(date time.Time) bool {
	for _, ex := range d.ExcludedDates {
		if sameDate(ex, date) {
			return true
		}
	}
	return false
}

// Location resolves the definition's IANA timezone.
func (d *Definition) Location() (*time.Location, error) {
	return time.LoadLocation(d.Timezone)
}

// TimeRangeLabel renders a human-readable summary of when the definition
// recurs, used in conflict reports.
func (d *Definition) TimeRangeLabel() string {
	var b strings.Builder
	b.WriteString(string(d.Recurrence))
	if d.Recurrence == RecurrenceWeekly {
		fmt.Fprintf(&b, " %s", weekdayName(d.DayOfWeek))
	}
	fmt.Fprintf(&b, " %s-%s from %s", d.StartTime, d.EndTime, d.StartDate.Format("2006-01-02"))
	if d.EndDate != nil {
		fmt.Fprintf(&b, " to %s", d.EndDate.Format("2006-01-02"))
	}
	return b.String()
}

var titlePattern = regexp.MustCompile(`^[a-zA-Z0-9 .,'()/_-]+$`)

const (
	maxTitleLen       = 120
	maxDescriptionLen = 500

	minSlotMinutes = 5
	maxSlotMinutes = 480

	maxBufferMinutes = 120

	maxAdvanceDaysCeiling  = 365
	maxAdvanceHoursCeiling = 168
)

// DefinitionInput carries the caller-supplied fields of a definition.
// Optional policy fields left nil are resolved to service defaults by
// Normalize before validation.
type DefinitionInput struct {
	Title       string
	Description *string

	Recurrence Recurrence
	DayOfWeek  int

	StartDate time.Time
	EndDate   *time.Time

	StartTime TimeOfDay
	EndTime   TimeOfDay

	SlotDuration int
	Buffer       int
	Timezone     string

	LocationKind   LocationKind
	LocationDetail *string

	AppointmentKind AppointmentKind

	MaxAdvanceDays     *int
	MinAdvanceHours    *int
	AllowOnlineBooking *bool
	RequiresApproval   bool

	ExcludedDates []time.Time
}

// Normalize trims free text, resolves optional policy fields to the given
// defaults and truncates dates to midnight.
func (in *DefinitionInput) Normalize(defaultAdvanceDays, defaultMinAdvanceHours int) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Description != nil {
		trimmed := strings.TrimSpace(*in.Description)
		if trimmed == "" {
			in.Description = nil
		} else {
			in.Description = &trimmed
		}
	}
	if in.Recurrence != RecurrenceWeekly {
		in.DayOfWeek = 0
	}
	if in.MaxAdvanceDays == nil {
		v := defaultAdvanceDays
		in.MaxAdvanceDays = &v
	}
	if in.MinAdvanceHours == nil {
		v := defaultMinAdvanceHours
		in.MinAdvanceHours = &v
	}
	if in.AllowOnlineBooking == nil {
		v := true
		in.AllowOnlineBooking = &v
	}
	in.StartDate = dateOnly(in.StartDate)
	if in.EndDate != nil {
		v := dateOnly(*in.EndDate)
		in.EndDate = &v
	}
	for i, ex := range in.ExcludedDates {
		in.ExcludedDates[i] = dateOnly(ex)
	}
}

// Validate checks field bounds and cross-field rules. Normalize must have
// run first so optional policy fields are concrete.
func (in *DefinitionInput) Validate() error {
	if in.Title == "" {
		return invalidField("title", "title is required")
	}
	if len(in.Title) > maxTitleLen {
		return invalidField("title", fmt.Sprintf("title must be at most %d characters", maxTitleLen))
	}
	if !titlePattern.MatchString(in.Title) {
		return invalidField("title", "title may only contain letters, digits, spaces and basic punctuation")
	}
	if in.Description != nil && len(*in.Description) > maxDescriptionLen {
		return invalidField("description", fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
	}
	if !in.Recurrence.valid() {
		return invalidField("recurrence", fmt.Sprintf("unknown recurrence %q", in.Recurrence))
	}
	if in.Recurrence == RecurrenceWeekly && (in.DayOfWeek < 1 || in.DayOfWeek > 7) {
		return invalidField("day_of_week", "day_of_week must be between 1 (Monday) and 7 (Sunday) for weekly schedules")
	}
	if in.StartDate.IsZero() {
		return invalidField("start_date", "start_date is required")
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return invalidField("end_date", "end_date must not be before start_date")
	}
	if in.StartTime < 0 || in.StartTime > 1439 || in.EndTime < 0 || in.EndTime > 1439 {
		return invalidField("start_time", "times must fall within a single day")
	}
	if in.EndTime <= in.StartTime {
		return invalidField("end_time", "end_time must be after start_time")
	}
	if in.SlotDuration < minSlotMinutes || in.SlotDuration > maxSlotMinutes {
		return invalidField("slot_duration_minutes", fmt.Sprintf("slot duration must be between %d and %d minutes", minSlotMinutes, maxSlotMinutes))
	}
	if in.Buffer < 0 || in.Buffer > maxBufferMinutes {
		return invalidField("buffer_minutes", fmt.Sprintf("buffer must be between 0 and %d minutes", maxBufferMinutes))
	}
	if in.Timezone == "" {
		return invalidField("timezone", "timezone is required")
	}
	if _, err := time.LoadLocation(in.Timezone); err != nil {
		return invalidField("timezone", fmt.Sprintf("unknown timezone %q", in.Timezone))
	}
	if !in.LocationKind.valid() {
		return invalidField("location_kind", fmt.Sprintf("unknown location kind %q", in.LocationKind))
	}
	if !in.AppointmentKind.valid() {
		return invalidField("appointment_kind", fmt.Sprintf("unknown appointment kind %q", in.AppointmentKind))
	}
	if *in.MaxAdvanceDays < 1 || *in.MaxAdvanceDays > maxAdvanceDaysCeiling {
		return invalidField("max_advance_booking_days", fmt.Sprintf("must be between 1 and %d", maxAdvanceDaysCeiling))
	}
	if *in.MinAdvanceHours < 0 || *in.MinAdvanceHours > maxAdvanceHoursCeiling {
		return invalidField("min_advance_booking_hours", fmt.Sprintf("must be between 0 and %d", maxAdvanceHoursCeiling))
	}
	return nil
}

// Apply writes the input onto def. Identity, ownership and audit fields are
// left untouched.
func (in *DefinitionInput) Apply(def *Definition) {
	def.Title = in.Title
	def.Description = in.Description
	def.Recurrence = in.Recurrence
	def.DayOfWeek = in.DayOfWeek
	def.StartDate = in.StartDate
	def.EndDate = in.EndDate
	def.StartTime = in.StartTime
	def.EndTime = in.EndTime
	def.SlotDuration = in.SlotDuration
	def.Buffer = in.Buffer
	def.Timezone = in.Timezone
	def.LocationKind = in.LocationKind
	def.LocationDetail = in.LocationDetail
	def.AppointmentKind = in.AppointmentKind
	def.MaxAdvanceDays = *in.MaxAdvanceDays
	def.MinAdvanceHours = *in.MinAdvanceHours
	def.AllowOnlineBooking = *in.AllowOnlineBooking
	def.RequiresApproval = in.RequiresApproval
	def.ExcludedDates = in.ExcludedDates
}

// farFutureDate stands in for a missing end date in range comparisons.
var farFutureDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// dateOnly truncates t to midnight UTC, the canonical form for calendar
// dates throughout the package.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// isoWeekday maps time.Weekday onto ISO numbering, 1 = Monday .. 7 = Sunday.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func weekdayName(isoDay int) string {
	return time.Weekday(isoDay % 7).String()[:3]
}
