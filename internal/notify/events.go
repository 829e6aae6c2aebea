// ABOUTME: Typed notification events pushed to agent sessions
// ABOUTME: One event kind per state change with a strongly-typed payload each

package notify

import "time"

// EventType discriminates the notification event union.
type EventType string

const (
	// EventQueueNew fires when a conversation enters the human queue.
	EventQueueNew EventType = "queue_new"
	// EventQueueUpdated fires on priority/tags/metadata changes and on
	// messages for conversations nobody has claimed yet.
	EventQueueUpdated EventType = "queue_updated"
	// EventMessageAdded fires when a message lands on an assigned conversation.
	EventMessageAdded EventType = "message_added"
	// EventAgentAssigned fires when an agent claims a conversation.
	EventAgentAssigned EventType = "agent_assigned"
	// EventConversationCompleted fires when a conversation is completed.
	EventConversationCompleted EventType = "conversation_completed"
	// EventConversationRedirected fires when the SLA ladder hands a
	// conversation back to the bot.
	EventConversationRedirected EventType = "conversation_redirected"
)

// Event is the tagged union carried to subscribers. Exactly one payload field
// is non-nil, matching Type.
type Event struct {
	Type       EventType        `json:"type"`
	Queue      *QueuePayload    `json:"queue,omitempty"`
	Message    *MessagePayload  `json:"message,omitempty"`
	Assignment *AssignPayload   `json:"assignment,omitempty"`
	Completion *CompletePayload `json:"completion,omitempty"`
	Redirect   *RedirectPayload `json:"redirect,omitempty"`
}

// QueuePayload describes a queue entry for queue_new and queue_updated.
type QueuePayload struct {
	ConversationID string    `json:"conversation_id"`
	Priority       int       `json:"priority"`
	Tags           []string  `json:"tags,omitempty"`
	AssignedAgent  string    `json:"assigned_agent,omitempty"`
	StartTime      time.Time `json:"start_time"`
}

// MessagePayload describes a newly appended message.
type MessagePayload struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
}

// AssignPayload describes an agent assignment.
type AssignPayload struct {
	ConversationID string `json:"conversation_id"`
	AgentID        string `json:"agent_id"`
}

// CompletePayload summarizes a completed conversation for analytics consumers.
type CompletePayload struct {
	ConversationID string    `json:"conversation_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	MessageCount   int       `json:"message_count"`
	AssignedAgent  string    `json:"assigned_agent,omitempty"`
}

// RedirectPayload describes an SLA-breach redirect back to the bot.
type RedirectPayload struct {
	ConversationID string `json:"conversation_id"`
	PreviousAgent  string `json:"previous_agent,omitempty"`
	Reason         string `json:"reason"`
}
