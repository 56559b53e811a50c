package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/provider-availability/internal/schedule"
)

const dateLayout = "2006-01-02"

// definitionRequest is the JSON body for creating or updating an
// availability definition. Clock times travel as "HH:MM", dates as
// "YYYY-MM-DD".
type definitionRequest struct {
	Title            string   `json:"title"`
	Description      *string  `json:"description,omitempty"`
	Recurrence       string   `json:"recurrence"`
	DayOfWeek        int      `json:"day_of_week,omitempty"`
	StartDate        string   `json:"start_date"`
	EndDate          *string  `json:"end_date,omitempty"`
	StartTime        string   `json:"start_time"`
	EndTime          string   `json:"end_time"`
	SlotDuration     int      `json:"slot_duration_minutes"`
	Buffer           int      `json:"buffer_minutes"`
	Timezone         string   `json:"timezone"`
	LocationKind     string   `json:"location_kind"`
	LocationDetail   *string  `json:"location_detail,omitempty"`
	AppointmentKind  string   `json:"appointment_kind"`
	MaxAdvanceDays   *int     `json:"max_advance_booking_days,omitempty"`
	MinAdvanceHours  *int     `json:"min_advance_booking_hours,omitempty"`
	AllowOnline      *bool    `json:"allow_online_booking,omitempty"`
	RequiresApproval bool     `json:"requires_approval,omitempty"`
	ExcludedDates    []string `json:"excluded_dates,omitempty"`
}

func (req *definitionRequest) toInput() (schedule.DefinitionInput, error) {
	var in schedule.DefinitionInput

	startDate, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return in, err
	}
	var endDate *time.Time
	if req.EndDate != nil {
		d, err := parseDate("end_date", *req.EndDate)
		if err != nil {
			return in, err
		}
		endDate = &d
	}
	startTime, err := parseClock("start_time", req.StartTime)
	if err != nil {
		return in, err
	}
	endTime, err := parseClock("end_time", req.EndTime)
	if err != nil {
		return in, err
	}
	excluded := make([]time.Time, 0, len(req.ExcludedDates))
	for _, raw := range req.ExcludedDates {
		d, err := parseDate("excluded_dates", raw)
		if err != nil {
			return in, err
		}
		excluded = append(excluded, d)
	}

	return schedule.DefinitionInput{
		Title:              req.Title,
		Description:        req.Description,
		Recurrence:         schedule.Recurrence(req.Recurrence),
		DayOfWeek:          req.DayOfWeek,
		StartDate:          startDate,
		EndDate:            endDate,
		StartTime:          startTime,
		EndTime:            endTime,
		SlotDuration:       req.SlotDuration,
		Buffer:             req.Buffer,
		Timezone:           req.Timezone,
		LocationKind:       schedule.LocationKind(req.LocationKind),
		LocationDetail:     req.LocationDetail,
		AppointmentKind:    schedule.AppointmentKind(req.AppointmentKind),
		MaxAdvanceDays:     req.MaxAdvanceDays,
		MinAdvanceHours:    req.MinAdvanceHours,
		AllowOnlineBooking: req.AllowOnline,
		RequiresApproval:   req.RequiresApproval,
		ExcludedDates:      excluded,
	}, nil
}

func parseDate(field, raw string) (time.Time, error) {
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, &schedule.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw),
		}
	}
	return d, nil
}

func parseClock(field, raw string) (schedule.TimeOfDay, error) {
	t, err := schedule.ParseTimeOfDay(raw)
	if err != nil {
		return 0, &schedule.ValidationError{Field: field, Message: err.Error()}
	}
	return t, nil
}

type definitionResponse struct {
	ID               uuid.UUID `json:"id"`
	ProviderID       uuid.UUID `json:"provider_id"`
	Title            string    `json:"title"`
	Description      *string   `json:"description,omitempty"`
	Recurrence       string    `json:"recurrence"`
	DayOfWeek        int       `json:"day_of_week,omitempty"`
	StartDate        string    `json:"start_date"`
	EndDate          *string   `json:"end_date,omitempty"`
	StartTime        string    `json:"start_time"`
	EndTime          string    `json:"end_time"`
	SlotDuration     int       `json:"slot_duration_minutes"`
	Buffer           int       `json:"buffer_minutes"`
	Timezone         string    `json:"timezone"`
	LocationKind     string    `json:"location_kind"`
	LocationDetail   *string   `json:"location_detail,omitempty"`
	AppointmentKind  string    `json:"appointment_kind"`
	MaxAdvanceDays   int       `json:"max_advance_booking_days"`
	MinAdvanceHours  int       `json:"min_advance_booking_hours"`
	AllowOnline      bool      `json:"allow_online_booking"`
	RequiresApproval bool      `json:"requires_approval"`
	ExcludedDates    []string  `json:"excluded_dates,omitempty"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toDefinitionResponse(d *schedule.Definition) definitionResponse {
	resp := definitionResponse{
		ID:               d.ID,
		ProviderID:       d.ProviderID,
		Title:            d.Title,
		Description:      d.Description,
		Recurrence:       string(d.Recurrence),
		DayOfWeek:        d.DayOfWeek,
		StartDate:        d.StartDate.Format(dateLayout),
		StartTime:        d.StartTime.String(),
		EndTime:          d.EndTime.String(),
		SlotDuration:     d.SlotDuration,
		Buffer:           d.Buffer,
		Timezone:         d.Timezone,
		LocationKind:     string(d.LocationKind),
		LocationDetail:   d.LocationDetail,
		AppointmentKind:  string(d.AppointmentKind),
		MaxAdvanceDays:   d.MaxAdvanceDays,
		MinAdvanceHours:  d.MinAdvanceHours,
		AllowOnline:      d.AllowOnlineBooking,
		RequiresApproval: d.RequiresApproval,
		Active:           d.Active,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if d.EndDate != nil {
		s := d.EndDate.Format(dateLayout)
		resp.EndDate = &s
	}
	for _, ex := range d.ExcludedDates {
		resp.ExcludedDates = append(resp.ExcludedDates, ex.Format(dateLayout))
	}
	return resp
}

func toDefinitionListResponse(defs []schedule.Definition) []definitionResponse {
	out := make([]definitionResponse, 0, len(defs))
	for i := range defs {
		out = append(out, toDefinitionResponse(&defs[i]))
	}
	return out
}

type definitionStatsResponse struct {
	TotalSlots      int     `json:"total_slots"`
	AvailableSlots  int     `json:"available_slots"`
	BookedSlots     int     `json:"booked_slots"`
	UtilizationRate float64 `json:"utilization_rate"`
	WindowDays      int     `json:"window_days"`
}

type definitionWithStatsResponse struct {
	definitionResponse
	Stats definitionStatsResponse `json:"stats"`
}

func toDefinitionWithStatsResponse(d *schedule.DefinitionWithStats) definitionWithStatsResponse {
	return definitionWithStatsResponse{
		definitionResponse: toDefinitionResponse(&d.Definition),
		Stats: definitionStatsResponse{
			TotalSlots:      d.Stats.TotalSlots,
			AvailableSlots:  d.Stats.AvailableSlots,
			BookedSlots:     d.Stats.BookedSlots,
			UtilizationRate: d.Stats.UtilizationRate,
			WindowDays:      d.Stats.WindowDays,
		},
	}
}

type providerStatsResponse struct {
	TotalDefinitions    int     `json:"total_definitions"`
	ActiveDefinitions   int     `json:"active_definitions"`
	BookableDefinitions int     `json:"bookable_definitions"`
	AvgSlotDuration     float64 `json:"avg_slot_duration_minutes"`
	UtilizationRate     float64 `json:"utilization_rate"`
	WindowDays          int     `json:"window_days"`
}

func toProviderStatsResponse(s *schedule.ProviderStatistics) providerStatsResponse {
	return providerStatsResponse{
		TotalDefinitions:    s.TotalDefinitions,
		ActiveDefinitions:   s.ActiveDefinitions,
		BookableDefinitions: s.BookableDefinitions,
		AvgSlotDuration:     s.AvgSlotDuration,
		UtilizationRate:     s.UtilizationRate,
		WindowDays:          s.WindowDays,
	}
}

type slotResponse struct {
	ID                   uuid.UUID  `json:"id"`
	DefinitionID         uuid.UUID  `json:"definition_id"`
	ProviderID           uuid.UUID  `json:"provider_id"`
	Date                 string     `json:"date"`
	StartTime            string     `json:"start_time"`
	EndTime              string     `json:"end_time"`
	StartAt              time.Time  `json:"start_at"`
	EndAt                time.Time  `json:"end_at"`
	Status               string     `json:"status"`
	Available            bool       `json:"available"`
	RequiresConfirmation bool       `json:"requires_confirmation"`
	PatientID            *uuid.UUID `json:"patient_id,omitempty"`
	PatientName          *string    `json:"patient_name,omitempty"`
	PatientEmail         *string    `json:"patient_email,omitempty"`
	PatientPhone         *string    `json:"patient_phone,omitempty"`
	VisitReason          *string    `json:"visit_reason,omitempty"`
	BookingNotes         *string    `json:"booking_notes,omitempty"`
	BookedAt             *time.Time `json:"booked_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason   *string    `json:"cancellation_reason,omitempty"`
	CancelledByProvider  bool       `json:"cancelled_by_provider,omitempty"`
	ConfirmedAt          *time.Time `json:"confirmed_at,omitempty"`
	CheckedInAt          *time.Time `json:"checked_in_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	ReminderSent         bool       `json:"reminder_sent,omitempty"`
	CheckedIn            bool       `json:"checked_in,omitempty"`
	Completed            bool       `json:"completed,omitempty"`
	NoShow               bool       `json:"no_show,omitempty"`
	ProviderNotes        *string    `json:"provider_notes,omitempty"`
	ActualDuration       *int       `json:"actual_duration_minutes,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func toSlotResponse(s *schedule.Slot) slotResponse {
	return slotResponse{
		ID:                   s.ID,
		DefinitionID:         s.DefinitionID,
		ProviderID:           s.ProviderID,
		Date:                 s.Date.Format(dateLayout),
		StartTime:            s.StartTime.String(),
		EndTime:              s.EndTime.String(),
		StartAt:              s.StartAt,
		EndAt:                s.EndAt,
		Status:               string(s.Status),
		Available:            s.Available,
		RequiresConfirmation: s.RequiresConfirmation,
		PatientID:            s.PatientID,
		PatientName:          s.PatientName,
		PatientEmail:         s.PatientEmail,
		PatientPhone:         s.PatientPhone,
		VisitReason:          s.VisitReason,
		BookingNotes:         s.BookingNotes,
		BookedAt:             s.BookedAt,
		CancelledAt:          s.CancelledAt,
		CancellationReason:   s.CancellationReason,
		CancelledByProvider:  s.CancelledByProvider,
		ConfirmedAt:          s.ConfirmedAt,
		CheckedInAt:          s.CheckedInAt,
		CompletedAt:          s.CompletedAt,
		ReminderSent:         s.ReminderSent,
		CheckedIn:            s.CheckedIn,
		Completed:            s.Completed,
		NoShow:               s.NoShow,
		ProviderNotes:        s.ProviderNotes,
		ActualDuration:       s.ActualDuration,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func toSlotListResponse(slots []schedule.Slot) []slotResponse {
	out := make([]slotResponse, 0, len(slots))
	for i := range slots {
		out = append(out, toSlotResponse(&slots[i]))
	}
	return out
}

type bookSlotRequest struct {
	PatientID    string  `json:"patient_id"`
	PatientName  string  `json:"patient_name"`
	PatientEmail *string `json:"patient_email,omitempty"`
	PatientPhone *string `json:"patient_phone,omitempty"`
	VisitReason  *string `json:"visit_reason,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

func (req *bookSlotRequest) toDetails() (schedule.BookingDetails, error) {
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return schedule.BookingDetails{}, &schedule.ValidationError{
			Field:   "patient_id",
			Message: "patient_id must be a UUID",
		}
	}
	return schedule.BookingDetails{
		PatientID:    patientID,
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: req.PatientPhone,
		VisitReason:  req.VisitReason,
		Notes:        req.Notes,
	}, nil
}

type cancelSlotRequest struct {
	Reason     string `json:"reason,omitempty"`
	ByProvider bool   `json:"by_provider,omitempty"`
}

type completeSlotRequest struct {
	ProviderNotes  string `json:"provider_notes,omitempty"`
	ActualDuration int    `json:"actual_duration_minutes,omitempty"`
}
