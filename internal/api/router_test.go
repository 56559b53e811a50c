package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/provider-availability/internal/config"
	redisclient "github.com/careloop/provider-availability/internal/redis"
	"github.com/careloop/provider-availability/internal/schedule"
)

// newTestRouter wires the real router over a pgxmock pool and a miniredis
// locker. Requests that should be rejected before touching storage need no
// mock expectations, so a stray query fails the test instead of passing
// silently.
func newTestRouter(t *testing.T) (http.Handler, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	svc := schedule.NewService(
		schedule.NewPgRepositoryWithDB(mock),
		redisclient.NewRedisLocker(client, 5*time.Second),
		config.Config{
			AdvanceBookingDays: 30,
			MinAdvanceHours:    2,
			StatsWindowDays:    30,
			ReminderLead:       24 * time.Hour,
		},
	)

	router := NewRouter(RouterConfig{
		Service: svc,
		Redis:   client,
		Env:     "test",
		Version: "test",
		Logger:  zerolog.Nop(),
	})
	return router, mock
}

func TestRouter_GetSlot(t *testing.T) {
	router, mock := newTestRouter(t)

	slotID := uuid.New()
	defID := uuid.New()
	providerID := uuid.New()
	day := time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)
	startAt := time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM availability_slots WHERE id").
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "definition_id", "provider_id", "slot_date", "start_minute", "end_minute",
			"start_at", "end_at", "status", "is_available", "requires_confirmation",
			"patient_id", "patient_name", "patient_email", "patient_phone", "visit_reason", "booking_notes",
			"booked_at", "cancelled_at", "cancellation_reason", "cancelled_by_provider",
			"confirmed_at", "checked_in_at", "completed_at", "reminder_sent_at",
			"reminder_sent", "checked_in", "completed", "no_show",
			"provider_notes", "actual_duration_minutes", "created_at", "updated_at",
		}).AddRow(
			slotID, defID, providerID, day, schedule.TimeOfDay(540), schedule.TimeOfDay(570),
			startAt, startAt.Add(30*time.Minute), schedule.SlotAvailable, true, false,
			nil, nil, nil, nil, nil, nil,
			nil, nil, nil, false,
			nil, nil, nil, nil,
			false, false, false, false,
			nil, nil, now, now,
		))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/slots/"+slotID.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp slotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, slotID, resp.ID)
	assert.Equal(t, "available", resp.Status)
	assert.Equal(t, "09:00", resp.StartTime)
	assert.Equal(t, "2026-03-04", resp.Date)
	assert.Nil(t, resp.PatientID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_GetSlot_NotFound(t *testing.T) {
	router, mock := newTestRouter(t)

	slotID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM availability_slots WHERE id").
		WithArgs(slotID).
		WillReturnError(pgx.ErrNoRows)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/slots/"+slotID.String(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "slot_not_found", decodeError(t, rec).Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_RejectsMalformedIDs(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := []struct {
		name     string
		method   string
		path     string
		wantCode string
	}{
		{"provider", http.MethodGet, "/api/v1/providers/not-a-uuid/availabilities", "invalid_provider_id"},
		{"definition", http.MethodGet, "/api/v1/providers/" + uuid.NewString() + "/availabilities/nope", "invalid_definition_id"},
		{"slot", http.MethodGet, "/api/v1/slots/123", "invalid_slot_id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.wantCode, decodeError(t, rec).Error)
		})
	}
}

func TestRouter_CreateAvailability_BadBody(t *testing.T) {
	router, _ := newTestRouter(t)
	path := "/api/v1/providers/" + uuid.NewString() + "/availabilities"

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{not json"))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decodeError(t, rec).Error)
}

func TestRouter_CreateAvailability_BadDate(t *testing.T) {
	router, _ := newTestRouter(t)
	path := "/api/v1/providers/" + uuid.NewString() + "/availabilities"

	body := `{
		"title": "Morning Clinic",
		"recurrence": "weekly",
		"day_of_week": 3,
		"start_date": "03/04/2026",
		"start_time": "09:00",
		"end_time": "11:00",
		"slot_duration_minutes": 30,
		"timezone": "UTC",
		"location_kind": "virtual",
		"appointment_kind": "consultation"
	}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "validation_failed", resp.Error)
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "start_date", details["field"])
}

func TestRouter_ListSlots_BadQuery(t *testing.T) {
	router, _ := newTestRouter(t)
	base := "/api/v1/providers/" + uuid.NewString() + "/slots"

	cases := []struct {
		name     string
		query    string
		wantCode string
	}{
		{"bad from", "?from=2026-13-45", "validation_failed"},
		{"bad definition id", "?definition_id=abc", "invalid_definition_id"},
		{"bad status", "?status=parked", "validation_failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base+tc.query, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.wantCode, decodeError(t, rec).Error)
		})
	}
}

func TestRouter_BookSlot_BadPatientID(t *testing.T) {
	router, _ := newTestRouter(t)
	path := "/api/v1/slots/" + uuid.NewString() + "/book"

	body := `{"patient_id": "not-a-uuid", "patient_name": "Dana Whitfield"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "validation_failed", resp.Error)
	details, ok := resp.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "patient_id", details["field"])
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots/oops", nil)
	req.Header.Set("X-Request-ID", "req-42")
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/slots/oops", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	// Generate one labelled observation first.
	warm := httptest.NewRecorder()
	router.ServeHTTP(warm, httptest.NewRequest(http.MethodGet, "/api/v1/slots/oops", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "availability_http_requests_total")
}
