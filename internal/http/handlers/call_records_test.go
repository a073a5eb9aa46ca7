package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearskymed/voicedesk/internal/records"
)

func callRecordsRouter(h *CallRecordsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/admin/calls", h.ListCalls)
	r.Get("/admin/calls/{callSID}", h.GetCall)
	return r
}

func TestListCalls(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	cols := []string{"id", "call_sid", "caller_phone", "outcome", "action", "transferred", "turn_count", "transcript", "started_at", "ended_at", "created_at"}
	mock.ExpectQuery("SELECT (.+) FROM call_records").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("rec-2", "CA2", "+15550002222", "handoff", "human_handoff", true, 3, "user: chest pain", now, now, now).
			AddRow("rec-1", "CA1", "+15550001111", "scheduled", "new_appointment", false, 5, "", now, now, now))

	handler := NewCallRecordsHandler(records.NewStore(mock), nil)
	rec := httptest.NewRecorder()
	callRecordsRouter(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/calls", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp CallRecordsListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "CA2", resp.Calls[0].CallSID)
	assert.True(t, resp.Calls[0].Transferred)
	assert.Equal(t, "scheduled", resp.Calls[1].Outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCallsHonorsLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"id", "call_sid", "caller_phone", "outcome", "action", "transferred", "turn_count", "transcript", "started_at", "ended_at", "created_at"}
	mock.ExpectQuery("SELECT (.+) FROM call_records").
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows(cols))

	handler := NewCallRecordsHandler(records.NewStore(mock), nil)
	rec := httptest.NewRecorder()
	callRecordsRouter(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/calls?limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCall(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	cols := []string{"id", "call_sid", "caller_phone", "outcome", "action", "transferred", "turn_count", "transcript", "started_at", "ended_at", "created_at"}
	mock.ExpectQuery("SELECT (.+) FROM call_records").
		WithArgs("CA123").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("rec-1", "CA123", "+15550001111", "rescheduled", "reschedule", false, 7, "agent: hello", now, now, now))

	handler := NewCallRecordsHandler(records.NewStore(mock), nil)
	rec := httptest.NewRecorder()
	callRecordsRouter(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/calls/CA123", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp CallRecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CA123", resp.CallSID)
	assert.Equal(t, "rescheduled", resp.Outcome)
	assert.Equal(t, now.Format(time.RFC3339), resp.CreatedAt)
}

func TestGetCallNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM call_records").
		WithArgs("CA404").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	handler := NewCallRecordsHandler(records.NewStore(mock), nil)
	rec := httptest.NewRecorder()
	callRecordsRouter(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/calls/CA404", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
