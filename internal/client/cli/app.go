package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/collabry/internal/client/client"
	"github.com/dmitrijs2005/collabry/internal/client/config"
	"github.com/dmitrijs2005/collabry/internal/client/models"
	"github.com/dmitrijs2005/collabry/internal/client/onboarding"
	"github.com/dmitrijs2005/collabry/internal/client/realtime"
	"github.com/dmitrijs2005/collabry/internal/client/services"
	"github.com/dmitrijs2005/collabry/internal/client/session"
	"github.com/dmitrijs2005/collabry/internal/client/twofactor"
	"github.com/dmitrijs2005/collabry/internal/client/validation"
	"github.com/dmitrijs2005/collabry/internal/client/vault"
	"github.com/dmitrijs2005/collabry/internal/filex"
	"github.com/dmitrijs2005/collabry/internal/logging"
)

// signupFlow is the part of onboarding.Flow the sign-up screen drives.
type signupFlow interface {
	Begin()
	Abandon()
	AwaitVerification(email string)
	SubmitCredentials(ctx context.Context, email, password string) error
	SubmitDetails(ctx context.Context, d validation.Details) error
	ResendCode(ctx context.Context) error
	Verify(ctx context.Context, otp string) (string, error)
}

type enrollmentFlow interface {
	State() twofactor.EnrollmentState
	RequestEnrollment(ctx context.Context) (models.TwoFactorSecret, error)
	VerifyAndEnable(ctx context.Context, code string) error
	Disable(ctx context.Context) error
	Close()
}

type challengeFlow interface {
	Submit(ctx context.Context, code string) error
	Close()
}

type connectionStatus interface {
	Current() (realtime.Identity, bool)
}

// Deps are the collaborators of App. NewApp builds the real ones; tests pass
// fakes.
type Deps struct {
	Auth          services.AuthService
	Signup        signupFlow
	NewEnrollment func() enrollmentFlow
	NewChallenge  func() challengeFlow
	Session       session.Reader
	Realtime      connectionStatus
	DevEmail      string
	Log           logging.Logger
}

type App struct {
	auth          services.AuthService
	signup        signupFlow
	newEnrollment func() enrollmentFlow
	newChallenge  func() challengeFlow
	session       session.Reader
	realtime      connectionStatus
	log           logging.Logger

	// enrollment is the open 2FA settings screen, nil when none is shown.
	enrollment enrollmentFlow
	lastEmail  string

	reader *bufio.Reader
	out    io.Writer

	controller *realtime.Controller
	db         *sql.DB
}

func newApp(d Deps, in io.Reader, out io.Writer) *App {
	if d.Log == nil {
		d.Log = logging.Nop{}
	}
	return &App{
		auth:          d.Auth,
		signup:        d.Signup,
		newEnrollment: d.NewEnrollment,
		newChallenge:  d.NewChallenge,
		session:       d.Session,
		realtime:      d.Realtime,
		log:           d.Log,
		lastEmail:     d.DevEmail,
		reader:        bufio.NewReader(in),
		out:           out,
	}
}

// NewApp wires the client: local database and token vault, the REST API
// client authenticated from the vault, the session store, the realtime
// controller and the flows.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	if err := filex.EnsureDir(c.DataDir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	db, err := client.InitDatabase(ctx, filepath.Join(c.DataDir, "collabry.db"))
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	v, err := vault.OpenSQLiteVault(ctx, db, c.DataDir, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	api := client.NewHTTPClient(c.APIBaseURL, v.Read, c.RequestTimeout)
	store := session.NewStore()

	mgr := realtime.NewManager(api, realtime.NewWebsocketDialer(c.RealtimeURL), log)
	controller := realtime.NewController(store, mgr, v.Read, log)

	a := newApp(Deps{
		Auth:   services.NewAuthService(api, v, store, log),
		Signup: onboarding.NewFlow(api, log),
		NewEnrollment: func() enrollmentFlow {
			return twofactor.NewEnrollment(api, store, log)
		},
		NewChallenge: func() challengeFlow {
			return twofactor.NewChallenge(api, store, v, log)
		},
		Session:  store,
		Realtime: mgr,
		DevEmail: c.DevEmail,
		Log:      log,
	}, os.Stdin, os.Stdout)
	a.controller = controller
	a.db = db
	return a, nil
}

// Run restores the previous session, if any, and serves the REPL until the
// user exits or input ends.
func (a *App) Run(ctx context.Context) {
	defer a.close(ctx)

	if a.controller != nil {
		a.controller.Start(ctx)
	}

	a.println("Welcome to Collabry (type 'help' for commands)")
	stack, err := a.auth.Restore(ctx)
	if err != nil {
		a.log.Warn(ctx, "session restore failed", "error", err)
		a.println("Could not restore your session:", describe(err))
	}
	switch stack {
	case session.StackAuthenticated:
		a.println("Signed in as", a.session.Snapshot().DisplayName())
	case session.StackTwoFactorChallenge:
		a.println("Two-factor authentication required. Type 'challenge' to enter your code.")
	}

	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) close(ctx context.Context) {
	a.closeEnrollment()
	if a.controller != nil {
		if err := a.controller.Stop(ctx); err != nil {
			a.log.Warn(ctx, "realtime shutdown", "error", err)
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *App) gate() session.Stack {
	return session.Gate(a.session.Snapshot())
}

// status is the prompt decoration: the signed-in email and the gate.
func (a *App) status() string {
	s := a.session.Snapshot()
	switch session.Gate(s) {
	case session.StackAuthenticated:
		return s.Email
	case session.StackTwoFactorChallenge:
		return s.Email + " 2fa"
	default:
		return ""
	}
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) closeEnrollment() {
	if a.enrollment != nil {
		a.enrollment.Close()
		a.enrollment = nil
	}
}
