package response

import (
	"encoding/json"
	"net/http"

	"github.com/diagnosis/luxsuv-invites/pkg/logger"
)

// ErrorResponse represents a structured JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteErrorWithDetails writes a structured JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, message, code, details string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code, Details: details})
}

// Common error codes
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeRateLimit           = "RATE_LIMIT_EXCEEDED"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeNotPublished        = "NOT_PUBLISHED"
	CodeLinkDisabled        = "LINK_DISABLED"
	CodeLinkExpired         = "LINK_EXPIRED"
	CodeAlreadyUsed         = "ALREADY_USED"
	CodeQuotaExhausted      = "QUOTA_EXHAUSTED"
	CodePartySize           = "PARTY_SIZE_NOT_ALLOWED"
	CodeNoResponse          = "NO_EXISTING_RESPONSE"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeIdempotencyMismatch = "IDEMPOTENCY_KEY_REUSED"
)

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message, CodeForbidden)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, CodeRateLimit)
}

func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message, CodeConflict)
}
