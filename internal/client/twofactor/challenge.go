package twofactor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/collabry/internal/client/models"
	"github.com/dmitrijs2005/collabry/internal/client/session"
	"github.com/dmitrijs2005/collabry/internal/client/validation"
	"github.com/dmitrijs2005/collabry/internal/client/vault"
	"github.com/dmitrijs2005/collabry/internal/logging"
)

type ChallengeAPI interface {
	AuthenticateTwoFactor(ctx context.Context, code string) (*models.SignInResult, error)
}

// Challenge is the login-time second factor screen.
type Challenge struct {
	api   ChallengeAPI
	store session.Manager
	vault vault.Vault
	log   logging.Logger

	mu     sync.Mutex
	closed bool
	busy   bool
}

func NewChallenge(api ChallengeAPI, store session.Manager, v vault.Vault, log logging.Logger) *Challenge {
	if log == nil {
		log = logging.Nop{}
	}
	return &Challenge{api: api, store: store, vault: v, log: log.With("component", "2fa-challenge")}
}

// Submit sends code to the server. On success the new token is saved and the
// session promoted in one step; on failure the session stays gated.
func (c *Challenge) Submit(ctx context.Context, code string) error {
	if err := validation.Code(code); err != nil {
		return err
	}

	snap := c.store.Snapshot()
	if session.Gate(snap) != session.StackTwoFactorChallenge {
		return ErrNoChallenge
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.mu.Unlock()

	res, err := c.api.AuthenticateTwoFactor(ctx, code)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false

	if err != nil {
		return fmt.Errorf("2fa challenge: %w", err)
	}
	if res == nil || res.AccessToken == "" {
		return ErrMissingToken
	}
	if c.closed {
		c.log.Debug(ctx, "discarding challenge result for closed screen")
		return ErrClosed
	}

	err = c.store.SatisfyChallenge(snap.ID, func() error {
		return c.vault.Save(ctx, res.AccessToken)
	})
	if errors.Is(err, session.ErrSessionChanged) || errors.Is(err, session.ErrNotAuthenticated) {
		c.log.Warn(ctx, "session changed during 2fa challenge, discarding result", "user_id", snap.ID)
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("persist challenge token: %w", err)
	}

	c.log.Info(ctx, "two-factor challenge satisfied", "user_id", snap.ID)
	return nil
}

func (c *Challenge) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
