package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/careloop/provider-availability/internal/schedule"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

type conflictDetailResponse struct {
	DefinitionID string `json:"definition_id"`
	Title        string `json:"title"`
	TimeRange    string `json:"time_range"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// respondServiceError translates service errors into HTTP responses. Unknown
// errors are logged with the request's correlation fields and answered with
// a generic message so storage details never leak to clients.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *schedule.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "validation_failed",
			Message: vErr.Message,
			Details: map[string]string{"field": vErr.Field},
		})
		return
	}

	var cErr *schedule.ConflictError
	if errors.As(err, &cErr) {
		details := make([]conflictDetailResponse, 0, len(cErr.Conflicts))
		for _, c := range cErr.Conflicts {
			details = append(details, conflictDetailResponse{
				DefinitionID: c.DefinitionID.String(),
				Title:        c.Title,
				TimeRange:    c.TimeRange,
			})
		}
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   "schedule_conflict",
			Message: cErr.Error(),
			Details: details,
		})
		return
	}

	var stateErr *schedule.StateConflictError
	if errors.As(err, &stateErr) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   "invalid_slot_state",
			Message: stateErr.Error(),
			Details: map[string]string{"current_status": string(stateErr.Current)},
		})
		return
	}

	var bookedErr *schedule.HasActiveBookingsError
	if errors.As(err, &bookedErr) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:   "has_active_bookings",
			Message: bookedErr.Error(),
			Details: map[string]int{"active_bookings": bookedErr.ActiveSlots},
		})
		return
	}

	switch {
	case errors.Is(err, schedule.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", "provider not found")
	case errors.Is(err, schedule.ErrDefinitionNotFound):
		writeError(w, http.StatusNotFound, "definition_not_found", "schedule definition not found")
	case errors.Is(err, schedule.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", "availability slot not found")
	case errors.Is(err, schedule.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access_denied", "schedule definition belongs to a different provider")
	case errors.Is(err, schedule.ErrProviderInactive):
		writeError(w, http.StatusUnprocessableEntity, "provider_inactive", "provider is not active")
	case errors.Is(err, schedule.ErrProviderBusy):
		writeError(w, http.StatusConflict, "provider_busy", "another scheduling change is in progress, retry shortly")
	case errors.Is(err, schedule.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_contended", "slot is being booked by someone else, retry shortly")
	case errors.Is(err, schedule.ErrSlotStale):
		writeError(w, http.StatusConflict, "slot_modified", "slot was modified concurrently, reload and retry")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
