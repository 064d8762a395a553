// Package token issues and verifies Seva's stateless session tokens.
//
// Tokens are HS256 JWTs signed with a single process-wide secret, carrying the
// identity id as subject plus issuer/iat/exp. Verification is pure: no store
// access, so every authenticated request can check its bearer cheaply.
//
// There is no revocation path before expiry; rotating the signing secret
// invalidates every outstanding token at once.
package token
