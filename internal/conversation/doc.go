// ABOUTME: Package doc for conversation
// ABOUTME: Lifecycle service between channel, bot, and the human queue

// Package conversation decides who owns each conversation. New contacts get
// a bot session; bot replies are screened for hand-off phrases and escalated
// into the queue when one matches; queued traffic flows through the registry
// instead of the bot. A cron sweep completes conversations that have been
// silent past the inactivity window.
package conversation
