package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alkorolyov/dcmon/internal/apierr"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes a JSON error response.
func RespondError(w http.ResponseWriter, status int, kind, message string) {
	Respond(w, status, ErrorResponse{Error: kind, Message: message})
}

// RespondAPIError inspects err for a typed *apierr.Error and renders its
// Kind and Status; anything else renders as an opaque internal error so
// that unexpected causes never leak detail to the client.
func RespondAPIError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if apiErr, ok := apierr.As(err); ok {
		RespondError(w, apiErr.Status(), string(apiErr.Kind), apiErr.Message)
		return
	}
	logger.Error("unhandled handler error", "error", err)
	RespondError(w, http.StatusInternalServerError, string(apierr.Internal), "internal error")
}
