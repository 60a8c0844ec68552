// Package vault keeps the single bearer token of the signed-in user.
//
// The vault, not the session store, is the authority on whether a credential
// exists: at cold start the application reads the vault before it knows
// anything about the user.
package vault

import (
	"context"
	"errors"
)

// ErrEmptyToken is returned by Save for an empty token. Use Remove instead.
var ErrEmptyToken = errors.New("vault: empty token")

// Vault stores at most one token. Read returns "" when the vault is empty;
// a missing token is never an error. Save replaces any previous token.
type Vault interface {
	Save(ctx context.Context, token string) error
	Read(ctx context.Context) (string, error)
	Remove(ctx context.Context) error
}
