package onboarding

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/collabry/internal/client/client"
	"github.com/dmitrijs2005/collabry/internal/client/models"
	"github.com/dmitrijs2005/collabry/internal/client/validation"
	"github.com/dmitrijs2005/collabry/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu sync.Mutex

	LastEmailChecked string
	LastSignUp       *models.SignUpRequest
	LastResendEmail  string
	LastVerifyEmail  string
	LastVerifyOTP    string
	Calls            int

	Available bool
	CheckErr  error
	SignUpErr error
	ResendErr error
	VerifyErr error

	// gate, when set, blocks every call until it is closed.
	gate chan struct{}
}

func (f *fakeAPI) wait() {
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeAPI) CheckEmailAvailable(_ context.Context, email string) (bool, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastEmailChecked = email
	return f.Available, f.CheckErr
}

func (f *fakeAPI) SignUp(_ context.Context, req models.SignUpRequest) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastSignUp = &req
	return f.SignUpErr
}

func (f *fakeAPI) ResendVerification(_ context.Context, email string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastResendEmail = email
	return f.ResendErr
}

func (f *fakeAPI) VerifyEmail(_ context.Context, email, otp string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	f.LastVerifyEmail = email
	f.LastVerifyOTP = otp
	return f.VerifyErr
}

var details = validation.Details{FirstName: "Ada", LastName: "Lovelace", PhoneNumber: "0123456789"}

func newFlow(api *fakeAPI) *Flow {
	return NewFlow(api, logging.Nop{})
}

func TestFlow_HappyPath(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{Available: true}
	f := newFlow(api)

	assert.Equal(t, StateEmpty, f.State())
	f.Begin()
	assert.Equal(t, StateCollectingCredentials, f.State())

	require.NoError(t, f.SubmitCredentials(ctx, "a@b.com", "password1"))
	assert.Equal(t, StateCollectingDetails, f.State())
	assert.Equal(t, "a@b.com", api.LastEmailChecked)

	require.NoError(t, f.SubmitDetails(ctx, details))
	assert.Equal(t, StateAwaitingEmailVerification, f.State())
	require.NotNil(t, api.LastSignUp)
	assert.Equal(t, models.SignUpRequest{
		Email: "a@b.com", Password: "password1", FirstName: "Ada", LastName: "Lovelace", PhoneNumber: "0123456789",
	}, *api.LastSignUp)

	require.NoError(t, f.ResendCode(ctx))
	assert.Equal(t, "a@b.com", api.LastResendEmail)
	assert.Equal(t, StateAwaitingEmailVerification, f.State())
	assert.Equal(t, "Ada", f.Draft().FirstName, "resend leaves the draft untouched")

	email, err := f.Verify(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", email)
	assert.Equal(t, "1234", api.LastVerifyOTP)
	assert.Equal(t, StateVerified, f.State())
	assert.Equal(t, Draft{}, f.Draft())
}

func TestFlow_EmailInUseRetainsDraft(t *testing.T) {
	api := &fakeAPI{Available: false}
	f := newFlow(api)
	f.Begin()

	err := f.SubmitCredentials(context.Background(), "a@b.com", "password1")
	require.ErrorIs(t, err, ErrEmailInUse)
	assert.Equal(t, "Email already in use", client.UserMessage(err))
	assert.Equal(t, StateCollectingCredentials, f.State())
	assert.Equal(t, "a@b.com", f.Draft().Email)
	assert.Equal(t, "password1", f.Draft().Password)

	api.Available = true
	require.NoError(t, f.SubmitCredentials(context.Background(), "c@d.com", "password1"))
	assert.Equal(t, StateCollectingDetails, f.State())
}

func TestFlow_ValidationBeforeNetwork(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{Available: true}
	f := newFlow(api)
	f.Begin()

	var verr *validation.Error
	require.ErrorAs(t, f.SubmitCredentials(ctx, "bad", "password1"), &verr)
	require.ErrorAs(t, f.SubmitCredentials(ctx, "a@b.com", "short"), &verr)
	assert.Equal(t, 0, api.Calls)

	require.NoError(t, f.SubmitCredentials(ctx, "a@b.com", "password1"))
	require.ErrorAs(t, f.SubmitDetails(ctx, validation.Details{FirstName: "A", LastName: "B", PhoneNumber: "12-34"}), &verr)
	assert.Equal(t, StateCollectingDetails, f.State())
	assert.Nil(t, api.LastSignUp)

	require.NoError(t, f.SubmitDetails(ctx, details))
	_, err := f.Verify(ctx, "12a4")
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, api.LastVerifyOTP)
}

func TestFlow_ServerErrorsKeepState(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{Available: true, SignUpErr: &client.APIError{Status: 400, Message: "phone taken"}}
	f := newFlow(api)
	f.Begin()
	require.NoError(t, f.SubmitCredentials(ctx, "a@b.com", "password1"))

	err := f.SubmitDetails(ctx, details)
	require.Error(t, err)
	assert.Equal(t, "phone taken", client.UserMessage(err))
	assert.Equal(t, StateCollectingDetails, f.State())

	api.SignUpErr = nil
	require.NoError(t, f.SubmitDetails(ctx, details))

	api.VerifyErr = &client.APIError{Status: 400, Message: "Invalid or expired OTP"}
	_, err = f.Verify(ctx, "0000")
	require.Error(t, err)
	assert.Equal(t, StateAwaitingEmailVerification, f.State())
	assert.Equal(t, "a@b.com", f.Draft().Email)
}

func TestFlow_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFlow(&fakeAPI{Available: true})

	require.ErrorIs(t, f.SubmitCredentials(ctx, "a@b.com", "password1"), ErrInvalidTransition)
	require.ErrorIs(t, f.SubmitDetails(ctx, details), ErrInvalidTransition)
	require.ErrorIs(t, f.ResendCode(ctx), ErrInvalidTransition)
	_, err := f.Verify(ctx, "1234")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFlow_AbandonLeavesNoResidue(t *testing.T) {
	ctx := context.Background()
	f := newFlow(&fakeAPI{Available: true})
	f.Begin()
	require.NoError(t, f.SubmitCredentials(ctx, "a@b.com", "password1"))
	require.Equal(t, StateCollectingDetails, f.State())

	f.Abandon()
	assert.Equal(t, StateEmpty, f.State())
	assert.Equal(t, Draft{}, f.Draft())

	f.Begin()
	assert.Equal(t, Draft{}, f.Draft())
	require.ErrorIs(t, f.SubmitDetails(ctx, details), ErrInvalidTransition)
}

func TestFlow_LateResultAfterAbandonIsDropped(t *testing.T) {
	api := &fakeAPI{Available: true, gate: make(chan struct{})}
	f := newFlow(api)
	f.Begin()

	done := make(chan error, 1)
	go func() { done <- f.SubmitCredentials(context.Background(), "a@b.com", "password1") }()

	require.Eventually(t, func() bool { return f.Draft().Email == "a@b.com" }, timeout, tick)
	f.Abandon()
	f.Begin()
	close(api.gate)

	require.ErrorIs(t, <-done, ErrAbandoned)
	assert.Equal(t, StateCollectingCredentials, f.State())
	assert.Equal(t, Draft{}, f.Draft())
}

func TestFlow_RejectsConcurrentSubmit(t *testing.T) {
	api := &fakeAPI{Available: true, gate: make(chan struct{})}
	f := newFlow(api)
	f.Begin()

	done := make(chan error, 1)
	go func() { done <- f.SubmitCredentials(context.Background(), "a@b.com", "password1") }()
	require.Eventually(t, func() bool { return f.Draft().Email == "a@b.com" }, timeout, tick)

	require.ErrorIs(t, f.SubmitCredentials(context.Background(), "a@b.com", "password1"), ErrBusy)
	close(api.gate)
	require.NoError(t, <-done)
}

func TestFlow_AwaitVerification(t *testing.T) {
	api := &fakeAPI{}
	f := newFlow(api)
	f.AwaitVerification("late@b.com")

	assert.Equal(t, StateAwaitingEmailVerification, f.State())
	require.NoError(t, f.ResendCode(context.Background()))
	assert.Equal(t, "late@b.com", api.LastResendEmail)

	api.ResendErr = errors.New("boom")
	require.Error(t, f.ResendCode(context.Background()))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting-email-verification", StateAwaitingEmailVerification.String())
	assert.Equal(t, "unknown", State(42).String())
}
