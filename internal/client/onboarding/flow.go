// Package onboarding drives account creation across several screens:
// credentials, personal details and email verification.
//
// The draft lives only in memory. Abandoning the flow discards it, and any
// server response that arrives afterwards is dropped instead of being applied
// to a newer attempt.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/collabry/internal/client/models"
	"github.com/dmitrijs2005/collabry/internal/client/validation"
	"github.com/dmitrijs2005/collabry/internal/common"
	"github.com/dmitrijs2005/collabry/internal/logging"
)

type State int

const (
	StateEmpty State = iota
	StateCollectingCredentials
	StateCollectingDetails
	StateAwaitingEmailVerification
	StateVerified
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateCollectingCredentials:
		return "collecting-credentials"
	case StateCollectingDetails:
		return "collecting-details"
	case StateAwaitingEmailVerification:
		return "awaiting-email-verification"
	case StateVerified:
		return "verified"
	default:
		return "unknown"
	}
}

var (
	ErrEmailInUse        = common.NewUserError("Email already in use")
	ErrInvalidTransition = errors.New("onboarding: action not allowed in current state")
	ErrAbandoned         = errors.New("onboarding: flow was abandoned")
	ErrBusy              = errors.New("onboarding: request already in progress")
)

// Draft is the not yet submitted sign-up form.
type Draft struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// API is the part of the server API the flow talks to.
type API interface {
	CheckEmailAvailable(ctx context.Context, email string) (bool, error)
	SignUp(ctx context.Context, req models.SignUpRequest) error
	ResendVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, email, otp string) error
}

type Flow struct {
	api API
	log logging.Logger

	mu    sync.Mutex
	state State
	draft Draft
	gen   uint64
	busy  bool
}

func NewFlow(api API, log logging.Logger) *Flow {
	if log == nil {
		log = logging.Nop{}
	}
	return &Flow{api: api, log: log.With("component", "onboarding")}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Begin starts a fresh attempt from an empty draft.
func (f *Flow) Begin() {
	f.reset(StateCollectingCredentials, Draft{})
}

// Abandon discards the draft. Results of requests still in flight are dropped.
func (f *Flow) Abandon() {
	f.reset(StateEmpty, Draft{})
}

// AwaitVerification resumes an account that was created but never verified,
// e.g. when sign-in reports an unverified email.
func (f *Flow) AwaitVerification(email string) {
	f.reset(StateAwaitingEmailVerification, Draft{Email: email})
}

func (f *Flow) reset(state State, draft Draft) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.state = state
	f.draft = draft
	f.busy = false
}

// start checks the state and marks a request in flight. It returns the
// generation the result must be committed against.
func (f *Flow) start(allowed ...State) (uint64, error) {
	ok := false
	for _, s := range allowed {
		if f.state == s {
			ok = true
			break
		}
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTransition, f.state)
	}
	if f.busy {
		return 0, ErrBusy
	}
	f.busy = true
	return f.gen, nil
}

// finish reacquires the lock after a request. It reports false, with the lock
// released, when the flow was reset in the meantime.
func (f *Flow) finish(ctx context.Context, gen uint64, op string) bool {
	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		f.log.Debug(ctx, "discarding result of abandoned onboarding", "op", op)
		return false
	}
	f.busy = false
	return true
}

// SubmitCredentials stores email and password in the draft and advances to
// the details step if the email is not registered yet. It may also be used
// from the details step to correct the credentials.
func (f *Flow) SubmitCredentials(ctx context.Context, email, password string) error {
	if err := validation.Struct(validation.Credentials{Email: email, Password: password}); err != nil {
		return err
	}

	f.mu.Lock()
	gen, err := f.start(StateCollectingCredentials, StateCollectingDetails)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.draft.Email = email
	f.draft.Password = password
	f.state = StateCollectingCredentials
	f.mu.Unlock()

	available, err := f.api.CheckEmailAvailable(ctx, email)

	if !f.finish(ctx, gen, "check-email") {
		return ErrAbandoned
	}
	defer f.mu.Unlock()

	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if !available {
		return ErrEmailInUse
	}
	f.state = StateCollectingDetails
	return nil
}

// SubmitDetails validates the personal details and creates the account.
func (f *Flow) SubmitDetails(ctx context.Context, d validation.Details) error {
	if err := validation.Struct(d); err != nil {
		return err
	}

	f.mu.Lock()
	gen, err := f.start(StateCollectingDetails)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.draft.FirstName = d.FirstName
	f.draft.LastName = d.LastName
	f.draft.PhoneNumber = d.PhoneNumber
	req := models.SignUpRequest{
		Email:       f.draft.Email,
		Password:    f.draft.Password,
		FirstName:   f.draft.FirstName,
		LastName:    f.draft.LastName,
		PhoneNumber: f.draft.PhoneNumber,
	}
	f.mu.Unlock()

	err = f.api.SignUp(ctx, req)

	if !f.finish(ctx, gen, "sign-up") {
		return ErrAbandoned
	}
	defer f.mu.Unlock()

	if err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	f.state = StateAwaitingEmailVerification
	f.log.Info(ctx, "account created, awaiting email verification")
	return nil
}

// ResendCode asks the server to mail a new code. The draft is left as is.
func (f *Flow) ResendCode(ctx context.Context) error {
	f.mu.Lock()
	gen, err := f.start(StateAwaitingEmailVerification)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	email := f.draft.Email
	f.mu.Unlock()

	err = f.api.ResendVerification(ctx, email)

	if !f.finish(ctx, gen, "resend") {
		return ErrAbandoned
	}
	defer f.mu.Unlock()

	if err != nil {
		return fmt.Errorf("resend code: %w", err)
	}
	return nil
}

// Verify submits the emailed code. On success the draft is discarded and the
// verified email is returned so sign-in can be prefilled.
func (f *Flow) Verify(ctx context.Context, otp string) (string, error) {
	if err := validation.OTP(otp); err != nil {
		return "", err
	}

	f.mu.Lock()
	gen, err := f.start(StateAwaitingEmailVerification)
	if err != nil {
		f.mu.Unlock()
		return "", err
	}
	email := f.draft.Email
	f.mu.Unlock()

	err = f.api.VerifyEmail(ctx, email, otp)

	if !f.finish(ctx, gen, "verify") {
		return "", ErrAbandoned
	}
	defer f.mu.Unlock()

	if err != nil {
		return "", fmt.Errorf("verify email: %w", err)
	}
	f.draft = Draft{}
	f.state = StateVerified
	f.log.Info(ctx, "email verified")
	return email, nil
}
