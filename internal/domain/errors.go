package domain

import "errors"

// Domain-specific errors for approval lifecycle validation.
var (
	// Validation errors
	ErrValidation          = errors.New("validation error")
	ErrInvalidReason       = errors.New("invalid reason")
	ErrChecklistIncomplete = errors.New("required checklist items are not checked")
	ErrUnknownTemplate     = errors.New("unknown policy template")

	// State errors
	ErrStaleState        = errors.New("approval request state changed concurrently")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotDue            = errors.New("deadline not reached")
	ErrAlreadyEscalated  = errors.New("escalation already sent")

	// Not found errors
	ErrTaskNotFound          = errors.New("task not found")
	ErrPolicyNotFound        = errors.New("approval policy not found")
	ErrRequestNotFound       = errors.New("approval request not found")
	ErrProjectNotFound       = errors.New("project not found")
	ErrChecklistItemNotFound = errors.New("checklist item not found")
	ErrUserNotFound          = errors.New("user not found")

	// Permission errors
	ErrPermissionDenied = errors.New("permission denied")
	ErrUserInactive     = errors.New("user is inactive")
	ErrInvalidToken     = errors.New("invalid authentication token")
)
