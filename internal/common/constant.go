// Package common contains shared constants, sentinel errors and small helpers
// used across the Collabry client packages.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer credential on outbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header value.
const BearerPrefix = "Bearer "

// RequestIDHeaderName tags every outbound HTTP call with a fresh id.
const RequestIDHeaderName = "X-Request-ID"

// GenericErrorMessage is shown to the user when the server did not provide
// a message of its own (transport failures, 5xx without body, etc.).
const GenericErrorMessage = "Something went wrong"
