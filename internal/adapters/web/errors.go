package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"owners-billing/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONStatus writes a JSON response with an explicit status code.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError maps billing errors onto HTTP statuses: missing records to
// 404, permission gates to 403, rejected transitions and number collisions to
// 409, other validation failures to 422.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvoiceNotFound):
		writeError(w, r, "invoice not found", "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrContractNotFound):
		writeError(w, r, "contract not found", "NOT_FOUND", http.StatusNotFound)
	case core.IsPermissionError(err):
		writeError(w, r, err.Error(), "FORBIDDEN", http.StatusForbidden)
	case isConflict(err):
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
	case core.IsValidationError(err), errors.Is(err, core.ErrContractNotBillable):
		writeError(w, r, err.Error(), "UNPROCESSABLE", http.StatusUnprocessableEntity)
	default:
		writeError(w, r, "internal server error", "INTERNAL", http.StatusInternalServerError)
	}
}

func isConflict(err error) bool {
	var te *core.TransitionError
	return errors.As(err, &te) || errors.Is(err, core.ErrDuplicateInvoiceNumber)
}
