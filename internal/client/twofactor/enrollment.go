package twofactor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/collabry/internal/client/models"
	"github.com/dmitrijs2005/collabry/internal/client/session"
	"github.com/dmitrijs2005/collabry/internal/client/validation"
	"github.com/dmitrijs2005/collabry/internal/logging"
)

type EnrollmentState int

const (
	EnrollmentDisabled EnrollmentState = iota
	EnrollmentAwaitingVerification
	EnrollmentEnabled
)

func (s EnrollmentState) String() string {
	switch s {
	case EnrollmentDisabled:
		return "disabled"
	case EnrollmentAwaitingVerification:
		return "awaiting-verification"
	case EnrollmentEnabled:
		return "enabled"
	default:
		return "unknown"
	}
}

type EnrollmentAPI interface {
	GenerateTwoFactor(ctx context.Context) (*models.TwoFactorSecret, error)
	TurnOnTwoFactor(ctx context.Context, code string) error
	TurnOffTwoFactor(ctx context.Context) error
}

// Enrollment is the settings-screen state machine. Its initial state mirrors
// the session at construction.
type Enrollment struct {
	api   EnrollmentAPI
	store session.Manager
	log   logging.Logger

	mu     sync.Mutex
	state  EnrollmentState
	secret *models.TwoFactorSecret
	gen    uint64
	closed bool
	busy   bool
}

func NewEnrollment(api EnrollmentAPI, store session.Manager, log logging.Logger) *Enrollment {
	if log == nil {
		log = logging.Nop{}
	}
	e := &Enrollment{api: api, store: store, log: log.With("component", "2fa-enrollment")}
	if store.Snapshot().IsTwoFactorEnabled {
		e.state = EnrollmentEnabled
	}
	return e
}

func (e *Enrollment) State() EnrollmentState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Secret returns the pending QR payload and manual-entry URL, if any.
func (e *Enrollment) Secret() (models.TwoFactorSecret, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.secret == nil {
		return models.TwoFactorSecret{}, false
	}
	return *e.secret, true
}

func (e *Enrollment) begin() (uint64, error) {
	if e.closed {
		return 0, ErrClosed
	}
	if e.busy {
		return 0, ErrBusy
	}
	e.busy = true
	return e.gen, nil
}

// end reports whether the screen is still the one that issued the request.
// It is called with e.mu held.
func (e *Enrollment) end(gen uint64) bool {
	if e.gen != gen {
		return false
	}
	e.busy = false
	return !e.closed
}

// RequestEnrollment asks the server for a new secret. Requesting again while
// awaiting verification replaces the pending secret.
func (e *Enrollment) RequestEnrollment(ctx context.Context) (models.TwoFactorSecret, error) {
	snap := e.store.Snapshot()
	if session.Gate(snap) != session.StackAuthenticated {
		return models.TwoFactorSecret{}, ErrNotAuthenticated
	}

	e.mu.Lock()
	if e.state == EnrollmentEnabled {
		e.mu.Unlock()
		return models.TwoFactorSecret{}, ErrAlreadyEnabled
	}
	gen, err := e.begin()
	e.mu.Unlock()
	if err != nil {
		return models.TwoFactorSecret{}, err
	}

	secret, err := e.api.GenerateTwoFactor(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.end(gen) {
		e.log.Debug(ctx, "discarding enrollment secret for closed screen")
		return models.TwoFactorSecret{}, ErrClosed
	}
	if err != nil {
		return models.TwoFactorSecret{}, fmt.Errorf("generate 2fa secret: %w", err)
	}

	e.secret = secret
	e.state = EnrollmentAwaitingVerification
	return *secret, nil
}

// VerifyAndEnable confirms the pending enrollment with a code from the
// authenticator app. A rejected code leaves the enrollment pending.
func (e *Enrollment) VerifyAndEnable(ctx context.Context, code string) error {
	if err := validation.Code(code); err != nil {
		return err
	}

	userID := e.store.Snapshot().ID

	e.mu.Lock()
	if e.state != EnrollmentAwaitingVerification {
		e.mu.Unlock()
		return ErrNotAwaitingVerification
	}
	gen, err := e.begin()
	e.mu.Unlock()
	if err != nil {
		return err
	}

	err = e.api.TurnOnTwoFactor(ctx, code)
	if err == nil {
		e.applyToSession(ctx, userID, e.store.EnableTwoFa)
		e.log.Info(ctx, "two-factor authentication enabled", "user_id", userID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.end(gen) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("turn on 2fa: %w", err)
	}
	e.secret = nil
	e.state = EnrollmentEnabled
	return nil
}

// Disable turns 2FA off. It needs a fully authenticated session, so a user
// still at the challenge cannot use it to skip the second factor. Calling it
// for a user whose session does not have 2FA enabled is a logic error and
// fails without contacting the server.
func (e *Enrollment) Disable(ctx context.Context) error {
	snap := e.store.Snapshot()
	if session.Gate(snap) != session.StackAuthenticated {
		return ErrNotAuthenticated
	}
	if !snap.IsTwoFactorEnabled {
		e.log.Error(ctx, "disable requested while two-factor authentication is off", "user_id", snap.ID)
		return ErrNotEnabled
	}

	e.mu.Lock()
	gen, err := e.begin()
	e.mu.Unlock()
	if err != nil {
		return err
	}

	err = e.api.TurnOffTwoFactor(ctx)
	if err == nil {
		e.applyToSession(ctx, snap.ID, e.store.DisableTwoFa)
		e.log.Info(ctx, "two-factor authentication disabled", "user_id", snap.ID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.end(gen) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("turn off 2fa: %w", err)
	}
	e.secret = nil
	e.state = EnrollmentDisabled
	return nil
}

// Cancel drops a pending enrollment.
func (e *Enrollment) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != EnrollmentAwaitingVerification {
		return
	}
	e.gen++
	e.busy = false
	e.secret = nil
	e.state = EnrollmentDisabled
}

// Close detaches the screen. Pending results are discarded from screen state.
func (e *Enrollment) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.gen++
	e.secret = nil
}

func (e *Enrollment) applyToSession(ctx context.Context, userID int64, apply func() error) {
	snap := e.store.Snapshot()
	if !snap.IsLoggedIn || snap.ID != userID {
		e.log.Warn(ctx, "session changed during 2fa request, not applying", "user_id", userID)
		return
	}
	if err := apply(); err != nil && !errors.Is(err, session.ErrNotAuthenticated) {
		e.log.Error(ctx, "apply 2fa change to session", "error", err)
	}
}
