// Package identity resolves the calling user from a signed token.
//
// The notification core does not own authentication; it only needs to know
// who the caller is. Identity arrives as an HS256 JWT issued by the auth
// subsystem, carried in the Authorization header, an auth cookie, or a
// query parameter (browsers cannot set headers on EventSource connections).
// A request without a token is anonymous and is scoped to the broadcast
// mailbox; only a present-but-invalid token is rejected.
package identity
