package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ignite/newsletter/internal/pkg/logger"
)

// maxBodyBytes caps request bodies read by Decode.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data as JSON with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("httputil: JSON encode failed", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Empty writes a bodiless 200.
func Empty(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}

// Error writes a JSON error envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, code, message string) {
	Error(w, http.StatusBadRequest, code, message)
}

// InternalError writes a 500. The cause is logged, the client only sees a
// generic message.
func InternalError(w http.ResponseWriter, log *logger.Logger, err error) {
	if log == nil {
		log = logger.Default()
	}
	log.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// Decode reads a JSON body into dst. It returns an error suitable for a 400
// response when the body is missing, too large or malformed.
func Decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
