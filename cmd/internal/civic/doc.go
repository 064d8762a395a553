// Package civic implements the public-service request models: citizen
// grievances and document requests, with Postgres-backed storage and the
// HTTP surface that serves them.
package civic
