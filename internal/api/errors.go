package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/alecgard/cascade/internal/apperr"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

const (
	msgUnexpected = "An unexpected error occurred. Please try again later."
	msgBadRequest = "Bad request. Please check your request again."
)

// successEnvelope is the standard success response shape.
type successEnvelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

// errorEnvelope is the standard error response shape.
type errorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, message, detail string) {
	writeJSON(w, statusCode, errorEnvelope{
		Status:  "error",
		Message: message,
		Error:   detail,
	})
}

// writeSuccess wraps data in the success envelope.
func writeSuccess(w http.ResponseWriter, statusCode int, data any, message string) {
	if data == nil {
		data = struct{}{}
	}
	writeJSON(w, statusCode, successEnvelope{
		Status:  "success",
		Data:    data,
		Message: message,
	})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeAppError maps err to a status code by its apperr kind. Errors without
// a kind are internal and their text is exposed as the detail.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(apperr.KindOf(err))
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
		writeError(w, status, msgUnexpected, err.Error())
		return
	}

	if ae, ok := apperr.As(err); ok {
		writeError(w, status, ae.Message, ae.Detail)
		return
	}
	writeError(w, status, msgBadRequest, err.Error())
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.BadRequest, apperr.InvalidArgument, apperr.Conflict:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v any) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}
