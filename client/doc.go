// Package client maintains a logged-in session against the portal API.
//
// The Agent holds the access/refresh token pair, schedules a refresh shortly
// before the access token expires, and retries a request once when the server
// answers with the TOKEN_EXPIRED code. The access token's expiry is read from
// the JWT payload without signature verification; the client has no signing
// secret and treats the token as opaque otherwise.
package client
