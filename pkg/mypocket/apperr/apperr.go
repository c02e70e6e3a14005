package apperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ValidationError is returned when a required field is missing or empty.
// It is always detected before any write happens.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConflictError is returned when a create or attach would duplicate an
// existing row (tag label, link URL, link-tag pair).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NotFoundError is returned when a link or tag id does not belong to the
// current user.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// Validation creates a ValidationError
func Validation(message string) error {
	return &ValidationError{Message: message}
}

// Conflict creates a ConflictError
func Conflict(message string) error {
	return &ConflictError{Message: message}
}

// NotFound creates a NotFoundError
func NotFound(message string) error {
	return &NotFoundError{Message: message}
}

// IsValidation reports whether err wraps a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict reports whether err wraps a ConflictError
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsNotFound reports whether err wraps a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// Status maps an error to the HTTP status code handlers respond with.
func Status(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsConflict(err):
		return http.StatusConflict
	case IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes err as a JSON error body. Known error kinds carry their own
// message; anything else is reported with the fallback message so storage
// details never reach the client.
func Respond(c *gin.Context, err error, fallback string) {
	status := Status(err)
	message := fallback
	if status != http.StatusInternalServerError {
		message = rootMessage(err)
	}
	c.JSON(status, gin.H{"error": message})
}

func rootMessage(err error) string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Message
	}
	var c *ConflictError
	if errors.As(err, &c) {
		return c.Message
	}
	var n *NotFoundError
	if errors.As(err, &n) {
		return n.Message
	}
	return err.Error()
}
