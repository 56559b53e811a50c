package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/careloop/provider-availability/internal/schedule"
)

func getSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := pathUUID(w, r, "slotID", "slot id")
		if !ok {
			return
		}

		slot, err := svc.GetSlot(r.Context(), slotID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func listSlotsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(w, r, "providerID", "provider id")
		if !ok {
			return
		}

		q := schedule.SlotQuery{
			ProviderID: providerID,
			Limit:      queryInt(r, "limit", 0),
			Offset:     queryInt(r, "offset", 0),
		}

		if raw := r.URL.Query().Get("from"); raw != "" {
			from, err := parseDate("from", raw)
			if err != nil {
				respondServiceError(w, r, err)
				return
			}
			q.From = from
		}
		if raw := r.URL.Query().Get("to"); raw != "" {
			to, err := parseDate("to", raw)
			if err != nil {
				respondServiceError(w, r, err)
				return
			}
			q.To = to
		}
		if raw := r.URL.Query().Get("definition_id"); raw != "" {
			defID, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_definition_id", "definition_id must be a valid UUID")
				return
			}
			q.DefinitionID = &defID
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status := schedule.SlotStatus(raw)
			q.Status = &status
		}

		slots, err := svc.ListSlots(r.Context(), q)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotListResponse(slots))
	}
}

func bookSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := pathUUID(w, r, "slotID", "slot id")
		if !ok {
			return
		}

		var req bookSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		details, err := req.toDetails()
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		slot, err := svc.BookSlot(r.Context(), slotID, details)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func cancelSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := pathUUID(w, r, "slotID", "slot id")
		if !ok {
			return
		}

		// The body is optional; cancelling without a reason is allowed.
		var req cancelSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slot, err := svc.CancelSlot(r.Context(), slotID, req.Reason, req.ByProvider)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func confirmSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := pathUUID(w, r, "slotID", "slot id")
		if !ok {
			return
		}

		slot, err := svc.ConfirmSlot(r.Context(), slotID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func checkInSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := pathUUID(w, r, "slotID", "slot id")
		if !ok {
			return
		}

		slot, err := svc.CheckInSlot(r.Context(), slotID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func completeSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := pathUUID(w, r, "slotID", "slot id")
		if !ok {
			return
		}

		// Notes and actual duration are optional.
		var req completeSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slot, err := svc.CompleteSlot(r.Context(), slotID, req.ProviderNotes, req.ActualDuration)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func noShowSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := pathUUID(w, r, "slotID", "slot id")
		if !ok {
			return
		}

		slot, err := svc.MarkSlotNoShow(r.Context(), slotID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func blockSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := pathUUID(w, r, "slotID", "slot id")
		if !ok {
			return
		}

		slot, err := svc.BlockSlot(r.Context(), slotID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func unblockSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := pathUUID(w, r, "slotID", "slot id")
		if !ok {
			return
		}

		slot, err := svc.UnblockSlot(r.Context(), slotID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}
