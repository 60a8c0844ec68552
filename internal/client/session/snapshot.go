package session

import (
	"strings"

	"github.com/dmitrijs2005/collabry/internal/client/models"
)

// Snapshot is an immutable copy of the session. The zero value is the
// signed-out state.
type Snapshot struct {
	ID          int64
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber string
	AvatarURL   string
	Role        string

	IsOnboarded               bool
	IsTwoFactorEnabled        bool
	IsTwoFaChallengeSatisfied bool
	IsLoggedIn                bool
}

func fromUser(u models.User) Snapshot {
	return Snapshot{
		ID:                        u.ID,
		Email:                     u.Email,
		FirstName:                 u.FirstName,
		LastName:                  u.LastName,
		PhoneNumber:               u.PhoneNumber,
		AvatarURL:                 u.AvatarURL,
		Role:                      u.Role,
		IsOnboarded:               u.IsOnboarded,
		IsTwoFactorEnabled:        u.IsTwoFactorEnabled,
		IsTwoFaChallengeSatisfied: !u.IsTwoFactorEnabled,
		IsLoggedIn:                true,
	}
}

// DisplayName is "first last", trimmed.
func (s Snapshot) DisplayName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Stack is the navigation stack a snapshot entitles the user to.
type Stack int

const (
	StackUnauthenticated Stack = iota
	StackTwoFactorChallenge
	StackAuthenticated
)

func (s Stack) String() string {
	switch s {
	case StackUnauthenticated:
		return "unauthenticated"
	case StackTwoFactorChallenge:
		return "two-factor-challenge"
	case StackAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Gate decides which stack s may render. A signed-in user with 2FA enabled
// sees only the challenge until it is satisfied.
func Gate(s Snapshot) Stack {
	switch {
	case !s.IsLoggedIn:
		return StackUnauthenticated
	case s.IsTwoFactorEnabled && !s.IsTwoFaChallengeSatisfied:
		return StackTwoFactorChallenge
	default:
		return StackAuthenticated
	}
}
