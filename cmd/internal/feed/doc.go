// Package feed pushes newly filed grievances to connected websocket
// listeners. The feed is broadcast-only: listeners authenticate during
// the handshake and then receive JSON envelopes; nothing they send is
// interpreted.
package feed
