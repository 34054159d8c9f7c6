// Package identity defines the portal's user and refresh-token records and the
// persistence boundary (Store) consumed by the session service.
//
// It contains no authentication policy: lockout thresholds, token issuance and
// credential verification live in internal/auth/session. The store only
// guarantees atomicity of the per-row counters it owns.
package identity
