// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject storage failures

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing. Individual
// operations can be made to fail by setting the corresponding error field.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	messages      map[string][]*Message
	queue         map[string]*QueueItem
	agents        map[string]*Agent

	// Injected failures, nil means the operation succeeds.
	AppendMessageErr error
	UpsertQueueErr   error
	ListMessagesErr  error
	GetQueueErr      error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
		queue:         make(map[string]*QueueItem),
		agents:        make(map[string]*Agent),
	}
}

// CreateConversation stores a new conversation.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *conv
	m.conversations[c.ID] = &c
	return nil
}

// GetConversation retrieves a conversation by id.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// UpdateConversation updates an existing conversation.
func (m *MockStore) UpdateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[conv.ID]; !ok {
		return ErrNotFound
	}
	c := *conv
	m.conversations[c.ID] = &c
	return nil
}

// ListConversationsIdleSince returns non-completed conversations idle since cutoff.
func (m *MockStore) ListConversationsIdleSince(ctx context.Context, cutoff time.Time) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Conversation
	for _, c := range m.conversations {
		if c.Status != StatusCompleted && !c.LastActivity.After(cutoff) {
			copied := *c
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivity.Before(result[j].LastActivity)
	})
	return result, nil
}

// AppendMessage appends a message to a conversation's history.
func (m *MockStore) AppendMessage(ctx context.Context, msg *Message) error {
	if m.AppendMessageErr != nil {
		return m.AppendMessageErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *msg
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &copied)
	return nil
}

// ListMessages returns a conversation's messages ordered by ascending timestamp.
func (m *MockStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	if m.ListMessagesErr != nil {
		return nil, m.ListMessagesErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := make([]*Message, 0, len(m.messages[conversationID]))
	for _, msg := range m.messages[conversationID] {
		copied := *msg
		msgs = append(msgs, &copied)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs, nil
}

// UpsertQueueItem inserts or replaces a queue row.
func (m *MockStore) UpsertQueueItem(ctx context.Context, item *QueueItem) error {
	if m.UpsertQueueErr != nil {
		return m.UpsertQueueErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *item
	m.queue[item.ConversationID] = &copied
	return nil
}

// GetQueueItem retrieves a queue row by conversation id.
func (m *MockStore) GetQueueItem(ctx context.Context, conversationID string) (*QueueItem, error) {
	if m.GetQueueErr != nil {
		return nil, m.GetQueueErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.queue[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	result := *item
	return &result, nil
}

// ListQueueItems returns all queue rows ordered by start time.
func (m *MockStore) ListQueueItems(ctx context.Context) ([]*QueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]*QueueItem, 0, len(m.queue))
	for _, item := range m.queue {
		copied := *item
		items = append(items, &copied)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].StartTime.Before(items[j].StartTime)
	})
	return items, nil
}

// DeleteQueueItem removes a queue row. Missing rows are not an error.
func (m *MockStore) DeleteQueueItem(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.queue, conversationID)
	return nil
}

// SaveAgent inserts or replaces an agent row.
func (m *MockStore) SaveAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *agent
	copied.ActiveConversations = append([]string(nil), agent.ActiveConversations...)
	m.agents[agent.ID] = &copied
	return nil
}

// GetAgent retrieves an agent by id.
func (m *MockStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *a
	result.ActiveConversations = append([]string(nil), a.ActiveConversations...)
	return &result, nil
}

// ListAgents returns all agent rows.
func (m *MockStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agents := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		copied := *a
		copied.ActiveConversations = append([]string(nil), a.ActiveConversations...)
		agents = append(agents, &copied)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents, nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}
