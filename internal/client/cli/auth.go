package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/collabry/internal/client/onboarding"
	"github.com/dmitrijs2005/collabry/internal/client/services"
	"github.com/dmitrijs2005/collabry/internal/client/session"
	"github.com/dmitrijs2005/collabry/internal/client/validation"
	"github.com/dmitrijs2005/collabry/internal/common"
)

// getSimpleText, getOptionalText and getPassword are indirections used to
// facilitate testing. They point to interactive input helpers and can be
// swapped in tests.
var (
	getSimpleText   = GetSimpleText
	getOptionalText = GetOptionalText
	getPassword     = GetPassword
)

// SignUp walks the user through the sign-up screens: credentials, personal
// details and the emailed verification code. Any failure before the code
// step abandons the draft.
func (a *App) SignUp(ctx context.Context) error {
	a.signup.Begin()

	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		a.signup.Abandon()
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		a.signup.Abandon()
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.signup.SubmitCredentials(ctx, email, string(password)); err != nil {
		a.signup.Abandon()
		return err
	}

	var d validation.Details
	for _, f := range []struct {
		prompt string
		dst    *string
	}{
		{"First name", &d.FirstName},
		{"Last name", &d.LastName},
		{"Phone number (digits only)", &d.PhoneNumber},
	} {
		if *f.dst, err = getSimpleText(a.reader, f.prompt, a.out); err != nil {
			a.signup.Abandon()
			return err
		}
	}

	if err := a.signup.SubmitDetails(ctx, d); err != nil {
		a.signup.Abandon()
		return err
	}

	return a.verifyEmail(ctx, email)
}

// verifyEmail prompts for the emailed code until it is accepted or the user
// gives up with an empty line. Wrong codes are reported and asked again.
func (a *App) verifyEmail(ctx context.Context, email string) error {
	for {
		code, err := getSimpleText(a.reader, "Enter the 4-digit code sent to "+email+" ('r' to resend, empty to cancel)", a.out)
		if err != nil {
			a.signup.Abandon()
			return err
		}

		switch code {
		case "":
			a.signup.Abandon()
			a.println("Sign-up cancelled")
			return nil
		case "r":
			if err := a.signup.ResendCode(ctx); err != nil {
				a.println("Error:", describe(err))
			} else {
				a.println("A new code is on its way")
			}
			continue
		}

		verified, err := a.signup.Verify(ctx, code)
		if errors.Is(err, onboarding.ErrAbandoned) {
			return err
		}
		if err != nil {
			a.println("Error:", describe(err))
			continue
		}

		a.lastEmail = verified
		a.println("Email verified. Sign in to continue.")
		return nil
	}
}

// SignIn prompts for credentials and signs in. Accounts with two-factor
// authentication go straight to the challenge; unverified accounts go to
// the email code prompt.
func (a *App) SignIn(ctx context.Context) error {
	email, err := getOptionalText(a.reader, "Enter email", a.lastEmail, a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	stack, err := a.auth.SignIn(ctx, email, string(password))
	if errors.Is(err, services.ErrEmailNotVerified) {
		a.println(describe(err))
		a.signup.AwaitVerification(email)
		return a.verifyEmail(ctx, email)
	}
	if err != nil {
		return err
	}
	a.lastEmail = email

	switch stack {
	case session.StackTwoFactorChallenge:
		a.println("Two-factor authentication is enabled for this account.")
		return a.Challenge(ctx)
	case session.StackAuthenticated:
		a.println("Signed in as", a.session.Snapshot().DisplayName())
	}
	return nil
}

// Challenge asks for the authenticator code of a gated session.
func (a *App) Challenge(ctx context.Context) error {
	c := a.newChallenge()
	defer c.Close()

	code, err := getSimpleText(a.reader, "Enter the 6-digit code from your authenticator app", a.out)
	if err != nil {
		return err
	}
	if err := c.Submit(ctx, code); err != nil {
		return err
	}

	a.println("Signed in as", a.session.Snapshot().DisplayName())
	return nil
}

// SignOut forgets the stored token and resets the session. The session is
// reset even when removing the token fails; that error is returned.
func (a *App) SignOut(ctx context.Context) error {
	a.closeEnrollment()
	if err := a.auth.SignOut(ctx); err != nil {
		return err
	}
	a.println("Signed out")
	return nil
}

func (a *App) Status(context.Context) error {
	s := a.session.Snapshot()
	if !s.IsLoggedIn {
		a.println("Not signed in")
	} else {
		a.println("Signed in as", s.DisplayName(), "<"+s.Email+">")
		if s.IsTwoFactorEnabled {
			a.println("Two-factor: on")
		} else {
			a.println("Two-factor: off")
		}
		if session.Gate(s) == session.StackTwoFactorChallenge {
			a.println("Waiting for the two-factor code")
		}
	}

	if a.realtime == nil {
		return nil
	}
	if id, ok := a.realtime.Current(); ok {
		a.println("Realtime: connected as", id.Name)
	} else {
		a.println("Realtime: disconnected")
	}
	return nil
}
