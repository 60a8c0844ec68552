package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dmitrijs2005/collabry/internal/client/client"
	"github.com/dmitrijs2005/collabry/internal/client/onboarding"
	"github.com/dmitrijs2005/collabry/internal/client/session"
	"github.com/dmitrijs2005/collabry/internal/client/twofactor"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	gate() session.Stack
	SignUp(ctx context.Context) error
	SignIn(ctx context.Context) error
	Challenge(ctx context.Context) error
	EnrollTwoFactor(ctx context.Context) error
	VerifyTwoFactor(ctx context.Context) error
	DisableTwoFactor(ctx context.Context) error
	EditProfile(ctx context.Context) error
	SetAvatar(ctx context.Context) error
	Status(ctx context.Context) error
	SignOut(ctx context.Context) error
}

// commandsFor lists the commands reachable from each navigation stack. A
// gated session only sees the challenge and sign-out.
func commandsFor(s session.Stack) []string {
	switch s {
	case session.StackAuthenticated:
		return []string{"help", "status", "profile", "avatar", "2fa-enroll", "2fa-verify", "2fa-disable", "signout", "exit"}
	case session.StackTwoFactorChallenge:
		return []string{"help", "status", "challenge", "signout", "exit"}
	default:
		return []string{"help", "status", "signup", "signin", "exit"}
	}
}

// runREPL reads commands line by line from reader and dispatches them to a.
// The loop exits on EOF or when the user types "exit" or "quit".
//
// Commands are filtered by the current navigation stack, so protected
// commands are refused until the session is fully authenticated. Errors
// returned by handlers are shown to the user and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if s := statusFn(); s != "" {
			printlnFn(fmt.Sprintf("collabry (%s) > ", s))
		} else {
			printlnFn("collabry > ")
		}

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		if cmd == "quit" {
			cmd = "exit"
		}

		allowed := commandsFor(a.gate())
		if !slices.Contains(allowed, cmd) {
			if isCommand(cmd) {
				printlnFn("Command not available now:", cmd)
			} else {
				printlnFn("Unknown command:", cmd)
			}
			continue
		}

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn("Available commands: " + strings.Join(allowed, ", "))
		case "signup":
			cmdErr = a.SignUp(ctx)
		case "signin":
			cmdErr = a.SignIn(ctx)
		case "challenge":
			cmdErr = a.Challenge(ctx)
		case "2fa-enroll":
			cmdErr = a.EnrollTwoFactor(ctx)
		case "2fa-verify":
			cmdErr = a.VerifyTwoFactor(ctx)
		case "2fa-disable":
			cmdErr = a.DisableTwoFactor(ctx)
		case "profile":
			cmdErr = a.EditProfile(ctx)
		case "avatar":
			cmdErr = a.SetAvatar(ctx)
		case "status":
			cmdErr = a.Status(ctx)
		case "signout":
			cmdErr = a.SignOut(ctx)
		case "exit":
			printlnFn("Bye!")
			return
		}
		if cmdErr != nil {
			printlnFn("Error:", describe(cmdErr))
		}
	}
}

func isCommand(cmd string) bool {
	for _, s := range []session.Stack{session.StackUnauthenticated, session.StackTwoFactorChallenge, session.StackAuthenticated} {
		if slices.Contains(commandsFor(s), cmd) {
			return true
		}
	}
	return false
}

// describe turns err into a line for the user. Flow errors without a
// server message get a fixed text; everything else goes through
// client.UserMessage.
func describe(err error) string {
	switch {
	case errors.Is(err, twofactor.ErrNotEnabled):
		return "Two-factor authentication is not enabled"
	case errors.Is(err, twofactor.ErrAlreadyEnabled):
		return "Two-factor authentication is already enabled"
	case errors.Is(err, twofactor.ErrNotAwaitingVerification):
		return "Run 2fa-enroll first"
	case errors.Is(err, twofactor.ErrBusy), errors.Is(err, onboarding.ErrBusy):
		return "A request is already in progress"
	case errors.Is(err, onboarding.ErrInvalidTransition):
		return "Not available at this step"
	case errors.Is(err, session.ErrNotAuthenticated):
		return "Please sign in first"
	default:
		return client.UserMessage(err)
	}
}
