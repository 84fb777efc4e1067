package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopquery/shopquery"
	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/logging"
)

// turnRequest is the body of POST /api/turns.
type turnRequest struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// turnHandler serves turn submission and cancellation.
type turnHandler struct {
	assistant *shopquery.ShopQuery
	logger    logging.Logger
}

// submit streams a turn over SSE. Each unit is one "unit" event; the stream
// ends after the terminal unit. Validation and conflict errors surface as a
// plain JSON error before any event is written.
func (h *turnHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	ctx := r.Context()
	traceID, units, errs, err := h.assistant.Submit(ctx, req.ConversationID, req.Query)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrConflict):
			writeError(w, h.logger, http.StatusConflict, "turn_in_flight", "a turn is already running for this conversation")
		case core.IsKind(err, core.KindValidation):
			writeError(w, h.logger, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			writeError(w, h.logger, http.StatusInternalServerError, "submit_failed", err.Error())
		}
		return
	}

	flusher, err := sseHeaders(w)
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "streaming_unsupported", err.Error())
		return
	}

	h.logger.Debug("api.turn.streaming", "trace_id", traceID, "request_id", requestIDFromContext(ctx))
	for unit := range units {
		if err := writeEvent(w, flusher, eventUnit, unit); err != nil {
			h.logger.Info("api.client.disconnected", "trace_id", traceID)
			// Keep draining so the engine can finish and checkpoint.
			for range units {
			}
			break
		}
	}
	if err := <-errs; err != nil {
		h.logger.Debug("api.turn.failed", "trace_id", traceID, "error", err.Error())
	}
}

// cancel handles DELETE /api/turns/{trace_id}.
func (h *turnHandler) cancel(w http.ResponseWriter, r *http.Request) {
	traceID := r.PathValue("trace_id")
	if err := h.assistant.Cancel(traceID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "not_found", "no in-flight turn with that trace id")
			return
		}
		writeError(w, h.logger, http.StatusInternalServerError, "cancel_failed", err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, map[string]string{"trace_id": traceID, "status": "cancelling"})
}
