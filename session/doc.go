// Package session houses concrete implementations of core.SessionStore. The
// interface and the Session type live in core so that the engine never
// depends on a concrete backend.
//
// InMemoryStore keeps snapshots in a process local map. The redis
// subpackage persists them as JSON with a TTL and rejects stale writes.
package session
