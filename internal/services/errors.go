package services

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a provider answers successfully but without any text.
var ErrEmptyResponse = errors.New("provider returned no text")

// APIError represents a non-success reply from a provider's HTTP API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s api error [%d]: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s api error: %s", e.Provider, e.Message)
}
