package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes returned in errResponse.Code.
const (
	codeNotFound     = "not_found"
	codeInvalidInput = "invalid_input"
	codeInternal     = "internal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// errResponse is the body of every non-2xx reply. RunID names the run the
// request addressed, when there is one.
type errResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
	RunID string `json:"run_id,omitempty"`
}

func errorBody(code, msg, runID string) errResponse {
	return errResponse{Code: code, Error: msg, RunID: runID}
}
