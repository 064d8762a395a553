// Package authapi exposes the HTTP surface of the identity subsystem:
// citizen registration, login, the authenticated directory listing, and
// the bearer-token middleware used by the rest of the API.
package authapi
