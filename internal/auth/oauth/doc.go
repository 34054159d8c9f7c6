// Package oauth implements delegated login against external identity
// providers. It owns the provider handshake (authorization URL, code
// exchange, ID-token verification) and hands a verified external identity
// to the session service, which decides whether to provision, link, or
// reject the account.
package oauth
