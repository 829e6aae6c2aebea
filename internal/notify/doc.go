// ABOUTME: Package documentation for the notify package
// ABOUTME: Describes the typed event fan-out and its delivery guarantees

// Package notify pushes conversation state changes to connected agent
// sessions.
//
// Events are a tagged union (Event) with one strongly-typed payload per kind,
// so subscribers are checked at compile time rather than decoding loose maps.
// The Broadcaster is the in-process pub/sub core; the Hub exposes it over
// WebSocket to agent consoles. Delivery is one-way and best effort: a slow
// subscriber loses events rather than stalling the registry.
package notify
