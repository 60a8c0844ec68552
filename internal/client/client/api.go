package client

import (
	"context"

	"github.com/dmitrijs2005/collabry/internal/client/models"
)

// Client is the server API consumed by the session layer. Every method maps to
// exactly one endpoint; none of them retries.
type Client interface {
	SignUp(ctx context.Context, req models.SignUpRequest) error
	CheckEmailAvailable(ctx context.Context, email string) (bool, error)
	ResendVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, email, otp string) error
	SignIn(ctx context.Context, email, password string) (*models.SignInResult, error)
	FetchCurrentUser(ctx context.Context) (*models.User, error)

	GenerateTwoFactor(ctx context.Context) (*models.TwoFactorSecret, error)
	TurnOnTwoFactor(ctx context.Context, code string) error
	TurnOffTwoFactor(ctx context.Context) error
	AuthenticateTwoFactor(ctx context.Context, code string) (*models.SignInResult, error)

	UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error)
	UpdateAvatarURL(ctx context.Context, url string) (*models.User, error)

	// IssueRealtimeCredential exchanges bearer for a one-time realtime
	// session credential. The bearer is passed explicitly so the caller
	// controls which token the credential is bound to.
	IssueRealtimeCredential(ctx context.Context, bearer string) (string, error)
}
