// ABOUTME: Narrow interfaces to the bot platform and the outbound channel
// ABOUTME: The core treats both as fire-and-await collaborators

package bridge

import (
	"context"
	"time"
)

// Session is a bot-platform conversation session with its access token.
type Session struct {
	ID        string
	Token     string
	FetchedAt time.Time
}

// BotBridge is what the core needs from the bot platform: create sessions,
// forward user text, and resume automated handling after a hand-back.
type BotBridge interface {
	// CreateSession opens a bot session for the given user identity.
	CreateSession(ctx context.Context, userID string) (*Session, error)

	// SendToBot forwards user text into the bot session. The bot's reply
	// arrives asynchronously through the reply callback path.
	SendToBot(ctx context.Context, conversationID, text string) error

	// ResumeBot returns control of a conversation to the bot after a manual
	// completion or an SLA redirect.
	ResumeBot(ctx context.Context, conversationID string) error
}

// ChannelSender delivers outbound text to the user's messaging channel.
// Implementations retry with backoff internally; the core only sees the final
// boolean outcome.
type ChannelSender interface {
	SendToUser(ctx context.Context, channelID, recipient, text string) bool
}
