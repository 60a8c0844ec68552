// Package tokenx reads claims from bearer tokens without verifying them.
//
// The client cannot verify the server's signature; it only looks at the
// expiry and subject to avoid sending a token it already knows is dead.
package tokenx

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/collabry/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

func claims(token string) (*jwt.RegisteredClaims, error) {
	var c jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil, errors.Join(common.ErrInvalidToken, err)
	}
	return &c, nil
}

// Expiry returns the exp claim. ok is false when the token is not a JWT or
// carries no expiry.
func Expiry(token string) (exp time.Time, ok bool) {
	c, err := claims(token)
	if err != nil || c.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.ExpiresAt.Time, true
}

// Expired reports whether token is known to be expired at now. Opaque tokens
// and tokens without exp are left for the server to judge.
func Expired(token string, now time.Time) bool {
	exp, ok := Expiry(token)
	return ok && !now.Before(exp)
}

// Subject returns the sub claim.
func Subject(token string) (string, error) {
	c, err := claims(token)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}
