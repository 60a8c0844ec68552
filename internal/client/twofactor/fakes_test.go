package twofactor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/collabry/internal/client/models"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeAPI struct {
	mu sync.Mutex

	LastTurnOnCode string
	LastAuthCode   string
	GenerateCalls  int
	TurnOnCalls    int
	TurnOffCalls   int
	AuthCalls      int

	Secret     *models.TwoFactorSecret
	GenErr     error
	TurnOnErr  error
	TurnOffErr error
	AuthResp   *models.SignInResult
	AuthErr    error

	gate    chan struct{}
	entered atomic.Int32
}

func (f *fakeAPI) wait() {
	f.entered.Add(1)
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeAPI) GenerateTwoFactor(context.Context) (*models.TwoFactorSecret, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GenerateCalls++
	return f.Secret, f.GenErr
}

func (f *fakeAPI) TurnOnTwoFactor(_ context.Context, code string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TurnOnCalls++
	f.LastTurnOnCode = code
	return f.TurnOnErr
}

func (f *fakeAPI) TurnOffTwoFactor(context.Context) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TurnOffCalls++
	return f.TurnOffErr
}

func (f *fakeAPI) AuthenticateTwoFactor(_ context.Context, code string) (*models.SignInResult, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AuthCalls++
	f.LastAuthCode = code
	return f.AuthResp, f.AuthErr
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.GenerateCalls + f.TurnOnCalls + f.TurnOffCalls + f.AuthCalls
}

func user(id int64, twoFA bool) models.User {
	return models.User{ID: id, Email: "u@example.com", FirstName: "U", IsTwoFactorEnabled: twoFA}
}

func (f *fakeAPI) inFlight() bool {
	return f.entered.Load() > 0
}
