package types

import (
	"context"
	"errors"
	"fmt"
	"net"
)

const (
	ErrorUnreachable        = "unreachable"
	ErrorBadStatus          = "bad_status"
	ErrorMalformedBody      = "malformed_body"
	ErrorMissingCredentials = "missing_credentials"
	ErrorCanceled           = "canceled"
)

// Error represents a stable, categorized failure talking to an external service.
type Error struct {
	Service  string
	Category string
	Detail   string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Service, e.Category)
	}

	return fmt.Sprintf("%s: %s: %s", e.Service, e.Category, e.Detail)
}

// NewError creates a categorized fetch error for one service.
func NewError(service string, category string, detail string) error {
	return &Error{Service: service, Category: category, Detail: detail}
}

// CategoryFromError returns the stable category for an error when available.
func CategoryFromError(err error) string {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorCanceled
	}

	return ErrorUnreachable
}

// NormalizeTransportError converts an http.Client failure into a categorized error.
func NormalizeTransportError(service string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return NewError(service, ErrorCanceled, "request canceled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(service, ErrorUnreachable, "request timed out")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(service, ErrorUnreachable, "request timed out")
	}

	return NewError(service, ErrorUnreachable, err.Error())
}
