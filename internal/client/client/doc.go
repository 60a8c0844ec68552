// Package client contains the client-side building blocks that talk to the
// Collabry backend.
//
// # Overview
//
// The package provides:
//  1. The server API contract (Client) with one method per endpoint: sign-up,
//     email availability, OTP resend and verification, sign-in, current user,
//     two-factor generate/turn-on/turn-off/authenticate, profile and avatar
//     updates, and realtime credential issuance.
//  2. A JSON-over-HTTP implementation (HTTPClient).
//  3. The outbound request authenticator: NewAuthTransport, an
//     http.RoundTripper that reads the bearer token from a TokenSource on
//     every call.
//  4. Local persistence bootstrap (InitDatabase, RunMigrations) over SQLite
//     with embedded goose migrations.
//
// # Error Handling
//
// Rejected requests surface as *APIError carrying the server's message.
// ErrUnauthorized and ErrUnavailable classify failures for errors.Is.
// UserMessage turns any error into text suitable for the user. No call is
// retried automatically.
package client
