// Package identity implements Seva's identity & credential subsystem.
//
// It contains the identity record model, the credential store boundary
// (Postgres and in-memory implementations), and the service that owns
// registration, authentication, and token verification.
//
// Credential hashes never leave this package: every read path that carries
// password_hash terminates at the Service, which only ever returns summaries.
package identity
