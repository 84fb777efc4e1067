package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopquery/shopquery"
	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/feedback"
	"github.com/shopquery/shopquery/logging"
)

// feedbackHandler serves feedback submission and lookup.
type feedbackHandler struct {
	assistant *shopquery.ShopQuery
	logger    logging.Logger
}

// submit handles POST /api/feedback.
func (h *feedbackHandler) submit(w http.ResponseWriter, r *http.Request) {
	var sub feedback.Submission
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	rec, err := h.assistant.RecordFeedback(r.Context(), sub)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			writeError(w, h.logger, http.StatusNotFound, "unknown_trace", "no turn with that trace id")
		case core.IsKind(err, core.KindValidation):
			writeError(w, h.logger, http.StatusBadRequest, "invalid_request", err.Error())
		default:
			writeError(w, h.logger, http.StatusInternalServerError, "feedback_failed", err.Error())
		}
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, rec)
}

// byTrace handles GET /api/feedback/{trace_id}.
func (h *feedbackHandler) byTrace(w http.ResponseWriter, r *http.Request) {
	recs, err := h.assistant.FeedbackByTrace(r.Context(), r.PathValue("trace_id"))
	if err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, "feedback_failed", err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, recs)
}
