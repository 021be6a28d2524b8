package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/example/storefront/internal/apperr"
)

// APIError represents a structured API error response
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
	Details string `json:"details,omitempty"`
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIError{
		Code:    code,
		Message: message,
	})
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindPaymentDeclined:
		return http.StatusPaymentRequired
	case apperr.KindPaymentGatewayError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeAppError renders a shop failure. Causes of internal errors are logged
// and never sent to the client.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	msg := "internal error"
	var e *apperr.Error
	if errors.As(err, &e) && kind != apperr.KindInternal {
		msg = e.Message
	}
	if kind == apperr.KindInternal || kind == apperr.KindPaymentGatewayError {
		log.Printf("[%s] %s %s: %v", kind, r.Method, r.URL.Path, err)
	}
	writeError(w, statusFor(kind), string(kind), msg)
}
