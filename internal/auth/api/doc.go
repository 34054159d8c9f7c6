// Package api exposes the authentication service over HTTP.
//
// The wire contract is fixed: success envelopes carry success=true plus the
// operation payload, failures carry success=false plus a stable machine code.
// Clients branch on the code, never on the human-readable message. The
// TOKEN_EXPIRED code is load-bearing: it is the only 401 that tells a client
// to refresh and retry instead of re-authenticating.
package api
