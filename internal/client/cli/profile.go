package cli

import (
	"context"

	"github.com/dmitrijs2005/collabry/internal/client/models"
)

// EditProfile prompts for each profile field with the current value as the
// default. Only changed fields are sent.
func (a *App) EditProfile(ctx context.Context) error {
	s := a.session.Snapshot()

	var update models.ProfileUpdate
	for _, f := range []struct {
		prompt string
		cur    string
		dst    **string
	}{
		{"First name", s.FirstName, &update.FirstName},
		{"Last name", s.LastName, &update.LastName},
		{"Phone number", s.PhoneNumber, &update.PhoneNumber},
	} {
		v, err := getOptionalText(a.reader, f.prompt, f.cur, a.out)
		if err != nil {
			return err
		}
		if v != f.cur {
			*f.dst = &v
		}
	}

	if update.Empty() {
		a.println("Nothing to change")
		return nil
	}
	if err := a.auth.UpdateProfile(ctx, update); err != nil {
		return err
	}

	a.println("Profile updated")
	return nil
}

func (a *App) SetAvatar(ctx context.Context) error {
	url, err := getSimpleText(a.reader, "Avatar URL", a.out)
	if err != nil {
		return err
	}
	if err := a.auth.UpdateAvatar(ctx, url); err != nil {
		return err
	}

	a.println("Avatar updated")
	return nil
}
