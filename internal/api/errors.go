package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized signals there is no active session. Callers treat it as
// "guest user, empty cart" rather than a visible failure.
var ErrUnauthorized = errors.New("no active session")

// ErrConflict signals a concurrent-modification conflict on the server.
// Transient: a retry or the next fetch self-heals, so callers stay quiet.
var ErrConflict = errors.New("cart conflict")

// APIError carries the failure envelope of any other non-success response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("cart api returned status %d", e.Status)
}
