// Package cli provides the interactive Collabry command-line client.
//
// It wires configuration, the local token vault, the REST API client, the
// session store and the realtime connection, then runs a REPL whose
// commands mirror the app screens:
//   - signup / signin, including the emailed verification code
//   - challenge, the second factor of a gated session
//   - 2fa-enroll, 2fa-verify, 2fa-disable
//   - profile, avatar
//   - status, signout
//
// The commands offered depend on the navigation stack of the session: a
// signed-in user who still owes a two-factor code only sees challenge and
// signout. The REPL is started via App.Run(ctx), which blocks until the
// user exits.
package cli
