// Package session holds the process-wide record of who is signed in.
//
// Store is the only writer of session state. Readers take immutable
// snapshots or subscribe to changes; which navigation stack may be shown is
// always Gate(snapshot), never a flag local to a screen.
package session

import (
	"errors"
	"sync"

	"github.com/dmitrijs2005/collabry/internal/client/models"
)

var (
	ErrNotAuthenticated = errors.New("session: not signed in")
	ErrSessionChanged   = errors.New("session: signed-in user changed")
)

// Listener observes a committed change. It runs synchronously on the
// mutating goroutine and must not call Store mutators.
type Listener func(prev, next Snapshot)

type Reader interface {
	Snapshot() Snapshot
	Subscribe(fn Listener) (unsubscribe func())
}

type Writer interface {
	SignIn(user models.User)
	SignOut()
	SignOutWith(cleanup func() error) error
	MarkTwoFaChallengeSatisfied() error
	SatisfyChallenge(userID int64, persist func() error) error
	EnableTwoFa() error
	DisableTwoFa() error
	UpdateProfile(update models.ProfileUpdate) error
	UpdateAvatar(url string) error
}

type Manager interface {
	Reader
	Writer
}

type subscription struct {
	id int
	fn Listener
}

// Store is safe for concurrent use. Mutations are serialized and each one is
// fully delivered to listeners before the next begins.
type Store struct {
	writeMu sync.Mutex

	mu     sync.RWMutex
	snap   Snapshot
	subs   []subscription
	nextID int
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Subscribe registers fn for future changes. The returned func removes it
// and is safe to call more than once.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) update(fn func(cur Snapshot) (Snapshot, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev := s.Snapshot()
	next, err := fn(prev)
	if err != nil {
		return err
	}
	if next == prev {
		return nil
	}

	s.mu.Lock()
	s.snap = next
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(prev, next)
	}
	return nil
}

func signedIn(fn func(cur Snapshot) Snapshot) func(Snapshot) (Snapshot, error) {
	return func(cur Snapshot) (Snapshot, error) {
		if !cur.IsLoggedIn {
			return cur, ErrNotAuthenticated
		}
		return fn(cur), nil
	}
}

// fullyAuthenticated is signedIn for mutations that are only allowed once
// the gate is open; a session still owing the challenge is refused.
func fullyAuthenticated(fn func(cur Snapshot) Snapshot) func(Snapshot) (Snapshot, error) {
	return func(cur Snapshot) (Snapshot, error) {
		if Gate(cur) != StackAuthenticated {
			return cur, ErrNotAuthenticated
		}
		return fn(cur), nil
	}
}

// SignIn replaces the whole session with user. A user with 2FA enabled
// starts with the challenge unsatisfied.
func (s *Store) SignIn(user models.User) {
	_ = s.update(func(Snapshot) (Snapshot, error) {
		return fromUser(user), nil
	})
}

// SignOut resets every field at once. Signing out twice is a no-op.
func (s *Store) SignOut() {
	_ = s.update(func(Snapshot) (Snapshot, error) {
		return Snapshot{}, nil
	})
}

// SignOutWith runs cleanup and then clears the session even if cleanup failed.
// No other mutation can interleave between the two. It returns cleanup's error.
func (s *Store) SignOutWith(cleanup func() error) error {
	var cerr error
	_ = s.update(func(Snapshot) (Snapshot, error) {
		if cleanup != nil {
			cerr = cleanup()
		}
		return Snapshot{}, nil
	})
	return cerr
}

func (s *Store) MarkTwoFaChallengeSatisfied() error {
	return s.update(signedIn(func(cur Snapshot) Snapshot {
		cur.IsTwoFaChallengeSatisfied = true
		return cur
	}))
}

// SatisfyChallenge runs persist and marks the challenge satisfied as one step,
// provided userID is still the signed-in user. Nothing is persisted otherwise.
func (s *Store) SatisfyChallenge(userID int64, persist func() error) error {
	return s.update(func(cur Snapshot) (Snapshot, error) {
		if !cur.IsLoggedIn {
			return cur, ErrNotAuthenticated
		}
		if cur.ID != userID {
			return cur, ErrSessionChanged
		}
		if persist != nil {
			if err := persist(); err != nil {
				return cur, err
			}
		}
		cur.IsTwoFaChallengeSatisfied = true
		return cur, nil
	})
}

// EnableTwoFa records a completed enrollment. The user has just proved
// possession of the second factor, so no challenge is owed. Both 2FA
// toggles require a fully authenticated session.
func (s *Store) EnableTwoFa() error {
	return s.update(fullyAuthenticated(func(cur Snapshot) Snapshot {
		cur.IsTwoFactorEnabled = true
		cur.IsTwoFaChallengeSatisfied = true
		return cur
	}))
}

func (s *Store) DisableTwoFa() error {
	return s.update(fullyAuthenticated(func(cur Snapshot) Snapshot {
		cur.IsTwoFactorEnabled = false
		cur.IsTwoFaChallengeSatisfied = true
		return cur
	}))
}

// UpdateProfile applies the non-nil fields of update.
func (s *Store) UpdateProfile(update models.ProfileUpdate) error {
	return s.update(signedIn(func(cur Snapshot) Snapshot {
		if update.FirstName != nil {
			cur.FirstName = *update.FirstName
		}
		if update.LastName != nil {
			cur.LastName = *update.LastName
		}
		if update.PhoneNumber != nil {
			cur.PhoneNumber = *update.PhoneNumber
		}
		return cur
	}))
}

func (s *Store) UpdateAvatar(url string) error {
	return s.update(signedIn(func(cur Snapshot) Snapshot {
		cur.AvatarURL = url
		return cur
	}))
}

var _ Manager = (*Store)(nil)
