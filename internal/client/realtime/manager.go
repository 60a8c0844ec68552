// Package realtime owns the single live realtime-messaging connection of the
// process and keeps it bound to the signed-in user.
//
// Manager serializes connect and disconnect: an existing connection for a
// different identity is closed, and its close awaited, before a new one is
// dialed. A connection that finishes dialing after its owner unmounted is
// closed instead of being published.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/collabry/internal/logging"
)

var (
	ErrNoBearerToken = errors.New("realtime: no bearer token")
	ErrNotMounted    = errors.New("realtime: owner is not mounted")
)

// Identity is the user a connection is bound to.
type Identity struct {
	ID   int64
	Name string
}

// TokenProvider returns the current bearer token, "" if there is none.
type TokenProvider func(ctx context.Context) (string, error)

// CredentialIssuer exchanges a bearer token for a one-time realtime credential.
type CredentialIssuer interface {
	IssueRealtimeCredential(ctx context.Context, bearer string) (string, error)
}

type Conn interface {
	Identity() Identity
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, id Identity, credential string) (Conn, error)
}

type Manager struct {
	issuer CredentialIssuer
	dialer Dialer
	log    logging.Logger

	opMu sync.Mutex

	connMu sync.RWMutex
	conn   Conn

	mounted atomic.Bool
	gen     atomic.Uint64
}

func NewManager(issuer CredentialIssuer, dialer Dialer, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop{}
	}
	return &Manager{issuer: issuer, dialer: dialer, log: log.With("component", "realtime")}
}

// Mount marks the owning context as live.
func (m *Manager) Mount() {
	m.gen.Add(1)
	m.mounted.Store(true)
}

// Unmount marks the owner as gone and tears the connection down. Connects
// still in flight observe the change and discard their result.
func (m *Manager) Unmount(ctx context.Context) error {
	m.mounted.Store(false)
	m.gen.Add(1)
	return m.Teardown(ctx)
}

func (m *Manager) live(gen uint64) bool {
	return m.mounted.Load() && m.gen.Load() == gen
}

// Current returns the identity of the live connection.
func (m *Manager) Current() (Identity, bool) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	if m.conn == nil {
		return Identity{}, false
	}
	return m.conn.Identity(), true
}

func (m *Manager) publish(c Conn) {
	m.connMu.Lock()
	m.conn = c
	m.connMu.Unlock()
}

// EnsureConnected makes id the identity of the live connection. It is a no-op
// when a connection for id already exists. A fresh credential is issued for
// every new connection using the token tokens returns at that moment.
func (m *Manager) EnsureConnected(ctx context.Context, id Identity, tokens TokenProvider) error {
	gen := m.gen.Load()
	if !m.mounted.Load() {
		return ErrNotMounted
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.live(gen) {
		return ErrNotMounted
	}

	if cur, ok := m.Current(); ok {
		if cur.ID == id.ID {
			return nil
		}
		if err := m.disconnect(ctx); err != nil {
			m.log.Warn(ctx, "close previous realtime connection", "user_id", cur.ID, "error", err)
		}
	}

	token, err := tokens(ctx)
	if err != nil {
		return fmt.Errorf("read bearer token: %w", err)
	}
	if token == "" {
		return ErrNoBearerToken
	}

	cred, err := m.issuer.IssueRealtimeCredential(ctx, token)
	if err != nil {
		return fmt.Errorf("issue realtime credential: %w", err)
	}

	conn, err := m.dialer.Dial(ctx, id, cred)
	if err != nil {
		return fmt.Errorf("dial realtime: %w", err)
	}

	if err := ctx.Err(); err != nil {
		m.log.Info(ctx, "connect cancelled, closing connection", "user_id", id.ID)
		if cerr := conn.Close(); cerr != nil {
			m.log.Warn(ctx, "close cancelled realtime connection", "error", cerr)
		}
		return err
	}
	if !m.live(gen) {
		m.log.Info(ctx, "owner unmounted during connect, closing connection", "user_id", id.ID)
		if err := conn.Close(); err != nil {
			m.log.Warn(ctx, "close orphaned realtime connection", "error", err)
		}
		return ErrNotMounted
	}

	m.publish(conn)
	m.log.Info(ctx, "realtime connected", "user_id", id.ID)
	return nil
}

// Teardown closes the live connection. It is a no-op without one.
func (m *Manager) Teardown(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.disconnect(ctx)
}

// disconnect must be called with opMu held.
func (m *Manager) disconnect(ctx context.Context) error {
	m.connMu.Lock()
	conn := m.conn
	m.conn = nil
	m.connMu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	m.log.Info(ctx, "realtime disconnected", "user_id", conn.Identity().ID)
	if err != nil {
		return fmt.Errorf("close realtime connection: %w", err)
	}
	return nil
}
