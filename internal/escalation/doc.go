// ABOUTME: Package doc for escalation
// ABOUTME: Trigger-phrase detection over bot replies

// Package escalation decides whether a bot reply is asking for a human.
// Detection is plain case-insensitive containment against a configured
// phrase list; the bot is expected to emit one of the phrases verbatim when
// it gives up.
package escalation
