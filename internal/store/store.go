// ABOUTME: Store interface and data types for handoff-gateway persistence
// ABOUTME: Defines Conversation, Message, QueueItem, Agent and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ConversationStatus describes who currently owns a conversation.
type ConversationStatus string

const (
	StatusBot       ConversationStatus = "bot"
	StatusWaiting   ConversationStatus = "waiting"
	StatusAgent     ConversationStatus = "agent"
	StatusCompleted ConversationStatus = "completed"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// AgentStatus describes an agent's availability.
type AgentStatus string

const (
	AgentOffline AgentStatus = "offline"
	AgentOnline  AgentStatus = "online"
	AgentBusy    AgentStatus = "busy"
	AgentAway    AgentStatus = "away"
)

// Conversation is the durable record of a user conversation, keyed by the
// external user identity shared with the bot-session layer.
type Conversation struct {
	ID                string // external user identity (phone/channel id)
	ChannelID         string // channel routing id for outbound delivery
	BotSessionID      string
	BotToken          string
	BotTokenFetchedAt time.Time
	Escalated         bool
	Status            ConversationStatus
	LastActivity      time.Time
	CreatedAt         time.Time
}

// Message is an immutable fact in a conversation's history. Messages are never
// mutated or deleted; history survives conversation completion.
type Message struct {
	ID             string
	ConversationID string
	Sender         Sender
	AgentID        string // set when Sender is agent
	Text           string
	AttachmentURL  string
	Metadata       map[string]string
	Timestamp      time.Time
}

// QueueItem is the durable row for a conversation currently awaiting or under
// human handling. Exists iff the conversation status is waiting or agent.
type QueueItem struct {
	ConversationID string
	ChannelID      string
	StartTime      time.Time
	Priority       int // 1..5, default 1
	Tags           []string
	AssignedAgent  string // empty when unassigned
	Metadata       map[string]string
}

// Agent is the directory record for a human agent.
type Agent struct {
	ID                  string
	Name                string
	Status              AgentStatus
	Role                string
	ActiveConversations []string
	MaxConcurrentChats  int
	LastActivity        time.Time
}

// Store defines the persistence contract the core consumes. The schema behind
// it is an implementation detail of the store package.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	UpdateConversation(ctx context.Context, conv *Conversation) error
	ListConversationsIdleSince(ctx context.Context, cutoff time.Time) ([]*Conversation, error)

	// Messages (append-only)
	AppendMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)

	// Queue items
	UpsertQueueItem(ctx context.Context, item *QueueItem) error
	GetQueueItem(ctx context.Context, conversationID string) (*QueueItem, error)
	ListQueueItems(ctx context.Context) ([]*QueueItem, error)
	DeleteQueueItem(ctx context.Context, conversationID string) error

	// Agents
	SaveAgent(ctx context.Context, agent *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)
	ListAgents(ctx context.Context) ([]*Agent, error)

	// Close releases any resources held by the store
	Close() error
}
