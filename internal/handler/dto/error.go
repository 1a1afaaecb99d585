package dto

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mtlprog/taskgate/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse creates a new error response.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// MapDomainError maps domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code string, message string) {
	message = err.Error()

	switch {
	// Not found errors
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, "TASK_NOT_FOUND", message
	case errors.Is(err, domain.ErrRequestNotFound):
		return http.StatusNotFound, "REQUEST_NOT_FOUND", message
	case errors.Is(err, domain.ErrChecklistItemNotFound):
		return http.StatusNotFound, "CHECKLIST_ITEM_NOT_FOUND", message
	case errors.Is(err, domain.ErrProjectNotFound):
		return http.StatusNotFound, "PROJECT_NOT_FOUND", message
	case errors.Is(err, domain.ErrPolicyNotFound):
		return http.StatusNotFound, "POLICY_NOT_FOUND", message

	// State errors
	case errors.Is(err, domain.ErrStaleState):
		return http.StatusConflict, "STALE_STATE", message
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION", message
	case errors.Is(err, domain.ErrNotDue):
		return http.StatusConflict, "NOT_DUE", message
	case errors.Is(err, domain.ErrAlreadyEscalated):
		return http.StatusConflict, "ALREADY_ESCALATED", message

	// Permission errors
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden, "INSUFFICIENT_ACCESS", message

	// Authentication errors
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusUnauthorized, "INVALID_TOKEN", message
	case errors.Is(err, domain.ErrUserInactive):
		return http.StatusUnauthorized, "USER_INACTIVE", message
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "INVALID_TOKEN", message

	// Validation errors
	case errors.Is(err, domain.ErrChecklistIncomplete):
		return http.StatusUnprocessableEntity, "CHECKLIST_INCOMPLETE", message
	case errors.Is(err, domain.ErrInvalidReason):
		return http.StatusUnprocessableEntity, "INVALID_REASON", message
	case errors.Is(err, domain.ErrUnknownTemplate):
		return http.StatusUnprocessableEntity, "UNKNOWN_TEMPLATE", message
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", message

	default:
		slog.Error("unmapped domain error returned to client",
			"error", err,
			"error_type", fmt.Sprintf("%T", err),
		)
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}
