// Package errx carries HTTP-mappable application errors between the core
// services and the handlers.
package errx

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	NotFoundMessage  = "not found"
	ForbiddenMessage = "forbidden"
	UpstreamMessage  = "upstream unavailable"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string

	// RetryAfter is non-zero only for ban rejections.
	RetryAfter time.Duration
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

func New(err error, status int, message string) *AppError {
	return &AppError{Err: err, Status: status, Message: message}
}

// NotFound reports a missing resource (unknown item id and the like).
func NotFound(err error) *AppError {
	return New(err, http.StatusNotFound, NotFoundMessage)
}

// Forbidden reports an abuse-gate rejection. retryAfter is zero for
// origin rejections and positive for active bans.
func Forbidden(retryAfter time.Duration) *AppError {
	return &AppError{Status: http.StatusForbidden, Message: ForbiddenMessage, RetryAfter: retryAfter}
}

// Upstream reports a store failure that could not be absorbed (cold start).
func Upstream(err error) *AppError {
	return New(err, http.StatusBadGateway, UpstreamMessage)
}

// IsNotFound reports whether err is a NotFound AppError.
func IsNotFound(err error) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}
