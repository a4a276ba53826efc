// Package chatstore provides core.ChatStore implementations: a volatile
// in-memory store for tests and demos, and a SQLite-backed store for durable
// per-session conversation logs.
//
// Both stores keep logs strictly append-only. Creating an existing session is
// a no-op; deleting a session removes its log atomically.
package chatstore
