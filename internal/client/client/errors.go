package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/collabry/internal/common"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response. Message is the server's human-readable
// message, empty when the body carried none.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// Unwrap lets callers match the broad classes with errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized, e.Status == http.StatusForbidden:
		return ErrUnauthorized
	case e.Status >= http.StatusInternalServerError:
		return ErrUnavailable
	default:
		return nil
	}
}

// TokenReadError reports that the bearer token could not be read while
// authenticating an outbound call.
type TokenReadError struct {
	Err error
}

func (e *TokenReadError) Error() string { return "read bearer token: " + e.Err.Error() }
func (e *TokenReadError) Unwrap() error { return e.Err }

// UserMessage returns the text to show the user for err: the message carried by
// a validation or flow error, the server's message for a rejected request, or
// the generic fallback for transport failures and anything else.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		if m := um.UserMessage(); m != "" {
			return m
		}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError && apiErr.Message != "" {
		return apiErr.Message
	}

	return common.GenericErrorMessage
}
