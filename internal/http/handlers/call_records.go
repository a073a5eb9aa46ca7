package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clearskymed/voicedesk/internal/records"
	"github.com/clearskymed/voicedesk/pkg/logging"
)

// CallRecordsHandler serves the call-record archive for the front desk
// dashboard.
type CallRecordsHandler struct {
	store  *records.Store
	logger *logging.Logger
}

// NewCallRecordsHandler creates a call records handler.
func NewCallRecordsHandler(store *records.Store, logger *logging.Logger) *CallRecordsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CallRecordsHandler{
		store:  store,
		logger: logger,
	}
}

// CallRecordResponse represents a completed call in API responses.
type CallRecordResponse struct {
	ID          string `json:"id"`
	CallSID     string `json:"call_sid"`
	CallerPhone string `json:"caller_phone,omitempty"`
	Outcome     string `json:"outcome"`
	Action      string `json:"action,omitempty"`
	Transferred bool   `json:"transferred"`
	TurnCount   int    `json:"turn_count"`
	Transcript  string `json:"transcript,omitempty"`
	StartedAt   string `json:"started_at"`
	EndedAt     string `json:"ended_at"`
	CreatedAt   string `json:"created_at"`
}

// CallRecordsListResponse represents a list of completed calls.
type CallRecordsListResponse struct {
	Calls []CallRecordResponse `json:"calls"`
	Total int                  `json:"total"`
}

// ListCalls returns the most recent completed calls, newest first.
func (h *CallRecordsHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	recs, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list call records failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := CallRecordsListResponse{Calls: make([]CallRecordResponse, 0, len(recs))}
	for _, rec := range recs {
		resp.Calls = append(resp.Calls, toCallRecordResponse(rec))
	}
	resp.Total = len(resp.Calls)
	writeJSON(w, http.StatusOK, resp)
}

// GetCall returns one completed call by its call SID.
func (h *CallRecordsHandler) GetCall(w http.ResponseWriter, r *http.Request) {
	callSID := chi.URLParam(r, "callSID")
	if callSID == "" {
		http.Error(w, "missing callSID", http.StatusBadRequest)
		return
	}

	rec, err := h.store.GetByCallSID(r.Context(), callSID)
	if err != nil {
		if errors.Is(err, records.ErrRecordNotFound) {
			http.Error(w, "call not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get call record failed", "call_sid", callSID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toCallRecordResponse(rec))
}

func toCallRecordResponse(rec *records.CallRecord) CallRecordResponse {
	return CallRecordResponse{
		ID:          rec.ID,
		CallSID:     rec.CallSID,
		CallerPhone: rec.CallerPhone,
		Outcome:     rec.Outcome,
		Action:      rec.Action,
		Transferred: rec.Transferred,
		TurnCount:   rec.TurnCount,
		Transcript:  rec.Transcript,
		StartedAt:   rec.StartedAt.Format(time.RFC3339),
		EndedAt:     rec.EndedAt.Format(time.RFC3339),
		CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
