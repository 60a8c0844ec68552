package cli

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/collabry/internal/client/twofactor"
)

// EnrollTwoFactor opens the 2FA settings screen and requests a new secret.
// The screen stays open until 2fa-verify succeeds or the user signs out.
func (a *App) EnrollTwoFactor(ctx context.Context) error {
	a.closeEnrollment()

	e := a.newEnrollment()
	secret, err := e.RequestEnrollment(ctx)
	if err != nil {
		e.Close()
		return err
	}
	a.enrollment = e

	a.println("Scan the QR code with your authenticator app, or add this key manually:")
	a.println(secret.AuthURL)
	a.println("Then run 2fa-verify with the 6-digit code.")
	return nil
}

func (a *App) VerifyTwoFactor(ctx context.Context) error {
	if a.enrollment == nil {
		return twofactor.ErrNotAwaitingVerification
	}

	code, err := getSimpleText(a.reader, "Enter the 6-digit code from your authenticator app", a.out)
	if err != nil {
		return err
	}
	if err := a.enrollment.VerifyAndEnable(ctx, code); err != nil {
		return err
	}

	a.closeEnrollment()
	a.println("Two-factor authentication enabled")
	return nil
}

func (a *App) DisableTwoFactor(ctx context.Context) error {
	a.closeEnrollment()

	answer, err := getSimpleText(a.reader, "Type 'yes' to turn off two-factor authentication", a.out)
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "yes") {
		a.println("Cancelled")
		return nil
	}

	e := a.newEnrollment()
	defer e.Close()
	if err := e.Disable(ctx); err != nil {
		return err
	}

	a.println("Two-factor authentication disabled")
	return nil
}
