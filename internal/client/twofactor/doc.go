// Package twofactor implements the two second-factor flows: enrollment from
// the settings screen (QR issuance, verification, disable) and the login-time
// challenge that promotes a gated session to fully authenticated.
//
// Both flows are screen-scoped. Close marks the owning screen as gone; a
// server result that arrives afterwards no longer touches screen state.
// Session changes the server has already committed (2FA turned on or off)
// are still applied to the store as long as the same user is signed in.
package twofactor

import "errors"

var (
	ErrNotEnabled              = errors.New("twofactor: two-factor authentication is not enabled")
	ErrAlreadyEnabled          = errors.New("twofactor: two-factor authentication is already enabled")
	ErrNotAwaitingVerification = errors.New("twofactor: no enrollment awaiting verification")
	ErrNoChallenge             = errors.New("twofactor: no challenge pending")
	ErrNotAuthenticated        = errors.New("twofactor: session is not fully authenticated")
	ErrClosed                  = errors.New("twofactor: screen closed")
	ErrBusy                    = errors.New("twofactor: request already in progress")
	ErrMissingToken            = errors.New("twofactor: server returned no access token")
)
