// Package services contains application services for the Collabry client.
// This file defines the authentication service: sign-in, cold-start restore,
// sign-out and profile changes of the signed-in user.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/collabry/internal/client/client"
	"github.com/dmitrijs2005/collabry/internal/client/models"
	"github.com/dmitrijs2005/collabry/internal/client/session"
	"github.com/dmitrijs2005/collabry/internal/client/validation"
	"github.com/dmitrijs2005/collabry/internal/client/vault"
	"github.com/dmitrijs2005/collabry/internal/common"
	"github.com/dmitrijs2005/collabry/internal/logging"
	"github.com/dmitrijs2005/collabry/internal/tokenx"
)

var (
	ErrMissingToken     = common.NewUserError("Missing token")
	ErrEmailNotVerified = errors.New("email not verified")
)

const unverifiedEmailMarker = "verify your email"

// AuthService defines the session operations used by the UI.
//
// Contract:
//   - SignIn: authenticate, persist the token, load the profile and return
//     the stack the user may now see.
//   - Restore: rebuild the session at cold start from the stored token.
//   - SignOut: forget the token and reset the session.
//   - UpdateProfile / UpdateAvatar: change the profile on the server and
//     mirror the result in the session.
type AuthService interface {
	SignIn(ctx context.Context, email, password string) (session.Stack, error)
	Restore(ctx context.Context) (session.Stack, error)
	SignOut(ctx context.Context) error
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) error
	UpdateAvatar(ctx context.Context, url string) error
}

// AuthAPI is the part of the server API the service uses.
type AuthAPI interface {
	SignIn(ctx context.Context, email, password string) (*models.SignInResult, error)
	FetchCurrentUser(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error)
	UpdateAvatarURL(ctx context.Context, url string) (*models.User, error)
}

type authService struct {
	api   AuthAPI
	vault vault.Vault
	store session.Manager
	log   logging.Logger
	now   func() time.Time
}

// NewAuthService constructs an AuthService over the given API, token vault
// and session store.
func NewAuthService(api AuthAPI, v vault.Vault, store session.Manager, log logging.Logger) AuthService {
	if log == nil {
		log = logging.Nop{}
	}
	return &authService{api: api, vault: v, store: store, log: log.With("component", "auth"), now: time.Now}
}

// SignIn validates the credentials locally, signs in on the server, saves the
// token and loads the profile. A user with 2FA enabled is left at the
// challenge. If the server says the email is unverified, the returned error
// matches ErrEmailNotVerified and carries the server message.
func (a *authService) SignIn(ctx context.Context, email, password string) (session.Stack, error) {
	if err := validation.Struct(validation.Credentials{Email: email, Password: password}); err != nil {
		return session.StackUnauthenticated, err
	}

	res, err := a.api.SignIn(ctx, email, password)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), unverifiedEmailMarker) {
			return session.StackUnauthenticated, fmt.Errorf("%w: %w", ErrEmailNotVerified, err)
		}
		a.log.Info(ctx, "sign-in rejected", "error", err)
		return session.StackUnauthenticated, fmt.Errorf("sign in: %w", err)
	}
	if res.AccessToken == "" {
		return session.StackUnauthenticated, ErrMissingToken
	}

	if err := a.vault.Save(ctx, res.AccessToken); err != nil {
		return session.StackUnauthenticated, fmt.Errorf("save token: %w", err)
	}

	user, err := a.api.FetchCurrentUser(ctx)
	if err != nil {
		if rerr := a.vault.Remove(ctx); rerr != nil {
			a.log.Error(ctx, "remove token after failed profile fetch", "error", rerr)
		}
		return session.StackUnauthenticated, fmt.Errorf("fetch profile: %w", err)
	}
	if res.IsTwoFactorEnabled {
		user.IsTwoFactorEnabled = true
	}

	a.store.SignIn(*user)
	stack := session.Gate(a.store.Snapshot())
	a.log.Info(ctx, "signed in", "user_id", user.ID, "stack", stack.String())
	return stack, nil
}

// Restore runs at cold start. The vault decides whether a credential exists;
// the profile is always re-fetched, so a user with 2FA enabled resumes at the
// challenge even if the app was killed right after a successful one.
func (a *authService) Restore(ctx context.Context) (session.Stack, error) {
	token, err := a.vault.Read(ctx)
	if err != nil {
		return session.StackUnauthenticated, fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		a.store.SignOut()
		return session.StackUnauthenticated, nil
	}

	if tokenx.Expired(token, a.now()) {
		a.log.Info(ctx, "stored token expired, discarding", "error", common.ErrTokenExpired)
		return session.StackUnauthenticated, a.store.SignOutWith(func() error { return a.vault.Remove(ctx) })
	}

	user, err := a.api.FetchCurrentUser(ctx)
	if errors.Is(err, client.ErrUnauthorized) {
		a.log.Info(ctx, "stored token rejected by server, discarding")
		return session.StackUnauthenticated, a.store.SignOutWith(func() error { return a.vault.Remove(ctx) })
	}
	if err != nil {
		return session.StackUnauthenticated, fmt.Errorf("fetch profile: %w", err)
	}
	if !tokenOwnedBy(token, user.ID) {
		a.log.Warn(ctx, "stored token belongs to another user, discarding", "user_id", user.ID)
		return session.StackUnauthenticated, a.store.SignOutWith(func() error { return a.vault.Remove(ctx) })
	}

	a.store.SignIn(*user)
	stack := session.Gate(a.store.Snapshot())
	a.log.Info(ctx, "session restored", "user_id", user.ID, "stack", stack.String())
	return stack, nil
}

// tokenOwnedBy reports whether token may belong to the user with id. Only a
// numeric subject claim can contradict the profile; opaque tokens and
// subjects in another format are accepted.
func tokenOwnedBy(token string, id int64) bool {
	sub, err := tokenx.Subject(token)
	if err != nil || sub == "" {
		return true
	}
	n, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return true
	}
	return n == id
}

// SignOut removes the token and resets the session in one step. The session
// is reset even if the token could not be removed.
func (a *authService) SignOut(ctx context.Context) error {
	userID := a.store.Snapshot().ID
	err := a.store.SignOutWith(func() error { return a.vault.Remove(ctx) })
	if err != nil {
		a.log.Error(ctx, "remove token on sign-out", "error", err)
		return fmt.Errorf("remove token: %w", err)
	}
	a.log.Info(ctx, "signed out", "user_id", userID)
	return nil
}

func (a *authService) UpdateProfile(ctx context.Context, update models.ProfileUpdate) error {
	snap := a.store.Snapshot()
	if session.Gate(snap) != session.StackAuthenticated {
		return session.ErrNotAuthenticated
	}
	if update.Empty() {
		return nil
	}
	if err := validation.Struct(update); err != nil {
		return err
	}

	user, err := a.api.UpdateProfile(ctx, update)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if a.store.Snapshot().ID != snap.ID {
		return session.ErrSessionChanged
	}
	return a.store.UpdateProfile(mergeProfile(update, user))
}

func (a *authService) UpdateAvatar(ctx context.Context, url string) error {
	snap := a.store.Snapshot()
	if session.Gate(snap) != session.StackAuthenticated {
		return session.ErrNotAuthenticated
	}
	if err := validation.Struct(validation.AvatarURL{URL: url}); err != nil {
		return err
	}

	user, err := a.api.UpdateAvatarURL(ctx, url)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	if a.store.Snapshot().ID != snap.ID {
		return session.ErrSessionChanged
	}
	if user != nil && user.AvatarURL != "" {
		url = user.AvatarURL
	}
	return a.store.UpdateAvatar(url)
}

// mergeProfile prefers the values the server echoed back over the request.
func mergeProfile(req models.ProfileUpdate, user *models.User) models.ProfileUpdate {
	if user == nil {
		return req
	}
	pick := func(sent *string, got string) *string {
		if got != "" {
			return &got
		}
		return sent
	}
	return models.ProfileUpdate{
		FirstName:   pick(req.FirstName, user.FirstName),
		LastName:    pick(req.LastName, user.LastName),
		PhoneNumber: pick(req.PhoneNumber, user.PhoneNumber),
	}
}
