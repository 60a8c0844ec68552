package common

import "errors"

var (
	// ErrInvalidToken is returned when a bearer token cannot be parsed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a bearer token's exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
)

// UserError is an error whose text is meant to be shown to the user as is.
type UserError struct {
	msg string
}

func NewUserError(msg string) *UserError {
	return &UserError{msg: msg}
}

func (e *UserError) Error() string       { return e.msg }
func (e *UserError) UserMessage() string { return e.msg }
