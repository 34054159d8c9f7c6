// Package password provides one-way password hashing and verification for the
// portal.
//
// It wraps bcrypt behind a small Hasher interface so the session service never
// touches hashing primitives directly, and so tests can substitute a cheap
// implementation. The work factor is configurable via environment variable.
package password
