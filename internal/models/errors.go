// Package models defines the domain entities and error taxonomy shared
// across repositories, services, and handlers.
package models

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
)

// AppError is an operational error carrying a machine code, an HTTP status,
// and a human-readable message safe to show to the caller.
type AppError struct {
	Code    string
	Status  int
	Message string
	Err     error
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

// NewValidationError signals malformed or missing input.
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Status:  fiber.StatusBadRequest,
		Message: message,
	}
}

// NewPermissionDeniedError signals a block, visibility, messaging-preference,
// or ownership violation.
func NewPermissionDeniedError(message string) *AppError {
	return &AppError{
		Code:    "PERMISSION_DENIED",
		Status:  fiber.StatusForbidden,
		Message: message,
	}
}

// NewNotFoundError signals a missing entity.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  fiber.StatusNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

// NewConflictError signals a duplicate follow/like/repost/conversation.
func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Status:  fiber.StatusBadRequest,
		Message: message,
	}
}

// NewUnauthenticatedError signals a missing or invalid caller identity.
func NewUnauthenticatedError(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHENTICATED",
		Status:  fiber.StatusUnauthorized,
		Message: message,
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Status:  fiber.StatusInternalServerError,
		Message: "Internal server error",
		Err:     err,
	}
}

// HTTPStatus maps an error to its HTTP status, defaulting to 500 for
// anything that is not an AppError.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return fiber.StatusInternalServerError
}

// RespondWithError is the single boundary translator for errors leaving the
// HTTP layer. 4xx responses are "fail" with the message shown verbatim; 5xx
// responses are "error" with the message replaced by a generic string outside
// development.
func RespondWithError(c *fiber.Ctx, err error) error {
	status := HTTPStatus(err)

	if status >= fiber.StatusInternalServerError {
		message := "Internal server error"
		if os.Getenv("APP_ENV") == "development" {
			message = err.Error()
		}
		return c.Status(status).JSON(fiber.Map{
			"status":  "error",
			"message": message,
		})
	}

	message := err.Error()
	var appErr *AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	return c.Status(status).JSON(fiber.Map{
		"status":  "fail",
		"message": message,
	})
}
