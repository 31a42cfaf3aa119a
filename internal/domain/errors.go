package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

func (e *AppError) WithMessage(msg string) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    msg,
		StatusCode: e.StatusCode,
		Err:        e.Err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Invalid or missing API key",
		StatusCode: 401,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Access denied",
		StatusCode: 403,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrWorkspaceNotFound = &AppError{
		Code:       "WORKSPACE_NOT_FOUND",
		Message:    "Workspace not found",
		StatusCode: 404,
	}

	ErrWorkspaceInactive = &AppError{
		Code:       "WORKSPACE_INACTIVE",
		Message:    "Workspace account is inactive",
		StatusCode: 403,
	}

	ErrDestinationNotFound = &AppError{
		Code:       "DESTINATION_NOT_FOUND",
		Message:    "Destination not found",
		StatusCode: 404,
	}

	ErrDestinationDisabled = &AppError{
		Code:       "DESTINATION_DISABLED",
		Message:    "Destination is disabled",
		StatusCode: 409,
	}

	ErrDeliveryNotFound = &AppError{
		Code:       "DELIVERY_NOT_FOUND",
		Message:    "Delivery not found",
		StatusCode: 404,
	}

	ErrLeadNotFound = &AppError{
		Code:       "LEAD_NOT_FOUND",
		Message:    "Lead not found",
		StatusCode: 404,
	}

	ErrAPIKeyNotFound = &AppError{
		Code:       "API_KEY_NOT_FOUND",
		Message:    "API key not found",
		StatusCode: 404,
	}

	ErrAPIKeyRevoked = &AppError{
		Code:       "API_KEY_REVOKED",
		Message:    "API key has been revoked",
		StatusCode: 401,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded, please try again later",
		StatusCode: 429,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrPrivateDestinationURL = &AppError{
		Code:       "PRIVATE_DESTINATION_URL",
		Message:    "Destination URL resolves to a private or reserved address",
		StatusCode: 422,
	}

	ErrInvalidDestinationURL = &AppError{
		Code:       "INVALID_DESTINATION_URL",
		Message:    "Destination URL is malformed or uses an unsupported scheme",
		StatusCode: 422,
	}

	ErrInvalidTransition = &AppError{
		Code:       "INVALID_DELIVERY_TRANSITION",
		Message:    "Delivery is in a terminal state",
		StatusCode: 409,
	}
)
