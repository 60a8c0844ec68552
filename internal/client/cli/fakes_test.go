package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/collabry/internal/client/models"
	"github.com/dmitrijs2005/collabry/internal/client/realtime"
	"github.com/dmitrijs2005/collabry/internal/client/session"
	"github.com/dmitrijs2005/collabry/internal/client/twofactor"
	"github.com/dmitrijs2005/collabry/internal/client/validation"
)

type fakeAuth struct {
	store *session.Store

	LastEmail    string
	LastPassword string
	LastUpdate   *models.ProfileUpdate
	LastAvatar   string
	SignOutCalls int

	SignInUser  *models.User
	SignInErr   error
	RestoreErr  error
	SignOutErr  error
	UpdateErr   error
	RestoreUser *models.User
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (session.Stack, error) {
	f.LastEmail, f.LastPassword = email, password
	if f.SignInErr != nil {
		return session.StackUnauthenticated, f.SignInErr
	}
	f.store.SignIn(*f.SignInUser)
	return session.Gate(f.store.Snapshot()), nil
}

func (f *fakeAuth) Restore(context.Context) (session.Stack, error) {
	if f.RestoreUser != nil {
		f.store.SignIn(*f.RestoreUser)
	}
	return session.Gate(f.store.Snapshot()), f.RestoreErr
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.SignOutCalls++
	f.store.SignOut()
	return f.SignOutErr
}

func (f *fakeAuth) UpdateProfile(_ context.Context, u models.ProfileUpdate) error {
	f.LastUpdate = &u
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	return f.store.UpdateProfile(u)
}

func (f *fakeAuth) UpdateAvatar(_ context.Context, url string) error {
	f.LastAvatar = url
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	return f.store.UpdateAvatar(url)
}

type fakeSignup struct {
	calls []string

	LastEmail    string
	LastPassword string
	LastDetails  validation.Details
	LastOTP      []string

	CredentialsErr error
	DetailsErr     error
	ResendErr      error
	// VerifyErrs is consumed one per Verify call; nil once exhausted.
	VerifyErrs []error
}

func (f *fakeSignup) Begin()   { f.calls = append(f.calls, "begin") }
func (f *fakeSignup) Abandon() { f.calls = append(f.calls, "abandon") }
func (f *fakeSignup) AwaitVerification(email string) {
	f.calls = append(f.calls, "await")
	f.LastEmail = email
}
func (f *fakeSignup) SubmitCredentials(_ context.Context, email, password string) error {
	f.calls = append(f.calls, "credentials")
	f.LastEmail, f.LastPassword = email, password
	return f.CredentialsErr
}
func (f *fakeSignup) SubmitDetails(_ context.Context, d validation.Details) error {
	f.calls = append(f.calls, "details")
	f.LastDetails = d
	return f.DetailsErr
}
func (f *fakeSignup) ResendCode(context.Context) error {
	f.calls = append(f.calls, "resend")
	return f.ResendErr
}
func (f *fakeSignup) Verify(_ context.Context, otp string) (string, error) {
	f.calls = append(f.calls, "verify")
	f.LastOTP = append(f.LastOTP, otp)
	if len(f.VerifyErrs) > 0 {
		err := f.VerifyErrs[0]
		f.VerifyErrs = f.VerifyErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.LastEmail, nil
}

type fakeEnrollment struct {
	state     twofactor.EnrollmentState
	secret    models.TwoFactorSecret
	LastCode  string
	closed    bool
	disabled  bool
	err       error
	verifyErr error
}

func (f *fakeEnrollment) State() twofactor.EnrollmentState { return f.state }
func (f *fakeEnrollment) RequestEnrollment(context.Context) (models.TwoFactorSecret, error) {
	if f.err != nil {
		return models.TwoFactorSecret{}, f.err
	}
	f.state = twofactor.EnrollmentAwaitingVerification
	return f.secret, nil
}
func (f *fakeEnrollment) VerifyAndEnable(_ context.Context, code string) error {
	f.LastCode = code
	if f.verifyErr != nil {
		return f.verifyErr
	}
	f.state = twofactor.EnrollmentEnabled
	return nil
}
func (f *fakeEnrollment) Disable(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.disabled = true
	return nil
}
func (f *fakeEnrollment) Close() { f.closed = true }

type fakeChallenge struct {
	store    *session.Store
	LastCode string
	err      error
	closed   bool
}

func (f *fakeChallenge) Submit(_ context.Context, code string) error {
	f.LastCode = code
	if f.err != nil {
		return f.err
	}
	return f.store.MarkTwoFaChallengeSatisfied()
}
func (f *fakeChallenge) Close() { f.closed = true }

type fakeRealtime struct {
	id *realtime.Identity
}

func (f fakeRealtime) Current() (realtime.Identity, bool) {
	if f.id == nil {
		return realtime.Identity{}, false
	}
	return *f.id, true
}

type harness struct {
	app         *App
	out         *bytes.Buffer
	store       *session.Store
	auth        *fakeAuth
	signup      *fakeSignup
	enrollments []*fakeEnrollment
	challenge   *fakeChallenge
	// nextEnrollment is returned by the next NewEnrollment call.
	nextEnrollment *fakeEnrollment
}

func newHarness(t *testing.T, input ...string) *harness {
	t.Helper()
	store := session.NewStore()
	h := &harness{
		out:       &bytes.Buffer{},
		store:     store,
		auth:      &fakeAuth{store: store},
		signup:    &fakeSignup{},
		challenge: &fakeChallenge{store: store},
	}
	in := strings.Join(input, "\n")
	if len(input) > 0 {
		in += "\n"
	}
	h.app = newApp(Deps{
		Auth:   h.auth,
		Signup: h.signup,
		NewEnrollment: func() enrollmentFlow {
			e := h.nextEnrollment
			if e == nil {
				e = &fakeEnrollment{}
			}
			h.nextEnrollment = nil
			h.enrollments = append(h.enrollments, e)
			return e
		},
		NewChallenge: func() challengeFlow { return h.challenge },
		Session:      store,
		Realtime:     fakeRealtime{},
	}, strings.NewReader(in), h.out)
	return h
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}

func ada(twoFA bool) models.User {
	return models.User{ID: 1, Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", IsTwoFactorEnabled: twoFA}
}
