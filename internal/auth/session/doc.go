// Package session implements the portal's authentication and session-token
// lifecycle: credential verification, access/refresh token issuance, refresh
// and revocation, and brute-force lockout.
//
// The Service is the central state machine. It is constructed with injected
// dependencies (identity store, password hasher, lockout policy, token issuer)
// and has an explicit Start/Stop lifecycle that owns the background
// refresh-token sweeper. There is no package-level singleton.
package session
