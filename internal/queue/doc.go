// ABOUTME: Package doc for queue
// ABOUTME: The conversation registry and its SLA timer ladder

// Package queue holds the working set of conversations that need a human:
// who is waiting, who is assigned, their message history, and the response
// timers that keep agents honest.
//
// The registry is deliberately memory-first. Operations mutate the in-memory
// entry and then write storage, logging rather than failing when a write
// misses; the durable stores are the recovery source, not the hot path.
// When a handler addresses a conversation the registry has never seen, it
// rebuilds the entry from storage before giving up, reconstructing a missing
// queue row with flagged defaults so the gap is visible.
//
// Each conversation carries at most one timer. Arming a new one always
// replaces the old, and a fired callback checks its generation against the
// current slot so a logically-cancelled timer that still fires does nothing.
// The ladder has two stages: warn the user after the response timeout, then
// hand the conversation back to the bot after the redirect multiple elapses
// with still no agent activity.
package queue
