package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careloop/provider-availability/internal/schedule"
)

func createAvailabilityHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(w, r, "providerID", "provider id")
		if !ok {
			return
		}

		var req definitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		in, err := req.toInput()
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		created, err := svc.CreateAvailability(r.Context(), providerID, in)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toDefinitionWithStatsResponse(created))
	}
}

func updateAvailabilityHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(w, r, "providerID", "provider id")
		if !ok {
			return
		}
		definitionID, ok := pathUUID(w, r, "definitionID", "definition id")
		if !ok {
			return
		}

		var req definitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		in, err := req.toInput()
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		updated, err := svc.UpdateAvailability(r.Context(), providerID, definitionID, in)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toDefinitionResponse(updated))
	}
}

func deleteAvailabilityHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(w, r, "providerID", "provider id")
		if !ok {
			return
		}
		definitionID, ok := pathUUID(w, r, "definitionID", "definition id")
		if !ok {
			return
		}

		if err := svc.DeleteAvailability(r.Context(), providerID, definitionID); err != nil {
			respondServiceError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getAvailabilityHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(w, r, "providerID", "provider id")
		if !ok {
			return
		}
		definitionID, ok := pathUUID(w, r, "definitionID", "definition id")
		if !ok {
			return
		}

		def, err := svc.GetAvailability(r.Context(), providerID, definitionID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toDefinitionWithStatsResponse(def))
	}
}

func listAvailabilitiesHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(w, r, "providerID", "provider id")
		if !ok {
			return
		}

		limit := queryInt(r, "limit", 0)
		offset := queryInt(r, "offset", 0)

		defs, err := svc.ListAvailabilities(r.Context(), providerID, limit, offset)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toDefinitionListResponse(defs))
	}
}

func searchAvailabilitiesHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(w, r, "providerID", "provider id")
		if !ok {
			return
		}

		defs, err := svc.SearchAvailabilities(r.Context(), providerID, r.URL.Query().Get("q"))
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toDefinitionListResponse(defs))
	}
}

func providerStatisticsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := pathUUID(w, r, "providerID", "provider id")
		if !ok {
			return
		}

		stats, err := svc.GetStatistics(r.Context(), providerID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toProviderStatsResponse(stats))
	}
}

// pathUUID parses a UUID route parameter, answering 400 on garbage so the
// handlers only see well-formed IDs.
func pathUUID(w http.ResponseWriter, r *http.Request, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		code := "invalid_" + strings.ReplaceAll(label, " ", "_")
		writeError(w, http.StatusBadRequest, code, label+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
