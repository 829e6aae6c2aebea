// ABOUTME: Package documentation for the store package
// ABOUTME: Describes the persistence layer and its consistency contract

// Package store provides durable persistence for handoff-gateway.
//
// It holds four kinds of records:
//
//   - Conversations: one row per external user identity, carrying the bot
//     session, escalation flag, and lifecycle status.
//   - Messages: the append-only history of everything exchanged in a
//     conversation. Messages are never mutated or deleted.
//   - Queue items: one row per conversation currently awaiting or under
//     human handling. Created on escalation, deleted on completion.
//   - Agents: the agent directory rows (status, load, capacity).
//
// The SQLite implementation (SQLiteStore) auto-creates its schema and runs in
// WAL mode. The in-memory registry treats this store as the source of truth it
// reconciles against; writes from the hot path are optimistic, so callers must
// tolerate transient divergence between memory and storage.
package store
