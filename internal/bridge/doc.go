// ABOUTME: Package doc for bridge
// ABOUTME: External messaging surfaces behind narrow interfaces

// Package bridge connects the routing core to the outside world: the
// Telegram channel the user talks on, and the bot platform that handles
// automated replies.
//
// Both directions are intentionally thin. Outbound channel delivery retries
// internally and reports only success or failure; the bot platform client
// caches session tokens and refreshes them on a TTL. The core depends on the
// BotBridge and ChannelSender interfaces, never on the concrete adapters, so
// tests substitute in-memory fakes.
package bridge
