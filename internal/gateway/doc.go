// ABOUTME: Package doc for gateway
// ABOUTME: Composition root and HTTP surface of the hand-off server

// Package gateway assembles the server: sqlite store, agent directory,
// conversation registry, escalation service, channel and bot bridges, and
// the notification hub, then serves the console API, the agent WebSocket
// feed, and the channel webhooks over one HTTP listener.
package gateway
