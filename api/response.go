package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopquery/shopquery/logging"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code. The body is
// encoded into a buffer first so headers only go out after successful
// encoding and a proper 500 can still be returned on failure.
func writeJSON(w http.ResponseWriter, logger logging.Logger, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("api.encode.failed", "error", err.Error())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("api.write.failed", "error", err.Error())
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, logger logging.Logger, status int, code, message string) {
	writeJSON(w, logger, status, errorBody{Code: code, Message: message})
}
