// ABOUTME: In-memory working set of conversations awaiting or under human handling
// ABOUTME: Owns assignment, message flow, SLA timers, and storage reconciliation

package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/handoff-gateway/internal/notify"
	"github.com/2389/handoff-gateway/internal/store"
)

// Store is the slice of persistence the registry needs.
type Store interface {
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	UpdateConversation(ctx context.Context, conv *store.Conversation) error
	AppendMessage(ctx context.Context, msg *store.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error)
	UpsertQueueItem(ctx context.Context, item *store.QueueItem) error
	GetQueueItem(ctx context.Context, conversationID string) (*store.QueueItem, error)
	ListQueueItems(ctx context.Context) ([]*store.QueueItem, error)
	DeleteQueueItem(ctx context.Context, conversationID string) error
}

// AgentBook is the capacity bookkeeping the registry drives on assignment
// and completion. The agent directory owns capacity policy; the registry
// only reports attach and detach.
type AgentBook interface {
	Attach(ctx context.Context, agentID, conversationID string) error
	Detach(ctx context.Context, agentID, conversationID string) error
}

// Notifier pushes state changes to connected agent sessions.
type Notifier interface {
	SendToAgent(agentID string, ev *notify.Event) bool
	Broadcast(ev *notify.Event)
}

// ChannelSender delivers outbound text to the user's messaging channel.
type ChannelSender interface {
	SendToUser(ctx context.Context, channelID, recipient, text string) bool
}

// BotResumer hands a conversation back to automated handling.
type BotResumer interface {
	ResumeBot(ctx context.Context, conversationID string) error
}

// Config holds the SLA ladder settings.
type Config struct {
	ResponseTimeout    time.Duration
	RedirectMultiplier float64
	WaitingMessage     string
}

// entry is the in-memory view of one queued conversation: the queue record
// plus its message history, kept in timestamp order.
type entry struct {
	item     *store.QueueItem
	messages []*store.Message
}

// Registry is the authoritative working set of conversations currently
// needing or under human attention. Memory is updated optimistically and
// storage follows; divergence is repaired by reconciliation and reload, not
// by transactions.
type Registry struct {
	cfg     Config
	store   Store
	agents  AgentBook
	notify  Notifier
	channel ChannelSender
	bot     BotResumer
	logger  *slog.Logger

	mu       sync.Mutex
	entries  map[string]*entry
	timers   map[string]*timerSlot
	timerGen uint64
}

// New creates an empty registry. Call Load to rebuild the working set from
// storage before serving traffic.
func New(cfg Config, st Store, agents AgentBook, notifier Notifier, channel ChannelSender, bot BotResumer, logger *slog.Logger) *Registry {
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 60 * time.Second
	}
	if cfg.RedirectMultiplier <= 0 {
		cfg.RedirectMultiplier = 2.0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:     cfg,
		store:   st,
		agents:  agents,
		notify:  notifier,
		channel: channel,
		bot:     bot,
		logger:  logger.With("component", "registry"),
		entries: make(map[string]*entry),
		timers:  make(map[string]*timerSlot),
	}
}

// Load rebuilds the working set from the queue store and re-arms timers for
// every entry that is still waiting on an agent or an agent reply. Called at
// startup so a restart does not strand queued conversations.
func (r *Registry) Load(ctx context.Context) error {
	items, err := r.store.ListQueueItems(ctx)
	if err != nil {
		return fmt.Errorf("loading queue items: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*entry, len(items))
	for _, item := range items {
		ent := &entry{item: item}
		msgs, err := r.store.ListMessages(ctx, item.ConversationID)
		if err != nil {
			r.logger.Error("loading message history",
				"conversation_id", item.ConversationID,
				"error", err)
		} else {
			ent.messages = msgs
		}
		r.entries[item.ConversationID] = ent
		r.armForEntryLocked(ent)
	}

	r.logger.Info("queue loaded from storage", "conversations", len(r.entries))
	return nil
}

// armForEntryLocked arms whichever timer the entry's current state calls
// for. Deadlines are anchored to the original event, so entries loaded after
// a restart keep their original SLA clock.
func (r *Registry) armForEntryLocked(ent *entry) {
	id := ent.item.ConversationID
	if ent.item.AssignedAgent == "" {
		r.armLocked(id, timerQueueWait, ent.item.StartTime, 1, ent.item.StartTime.Add(r.cfg.ResponseTimeout))
		return
	}
	if last := lastMessage(ent); last != nil && last.Sender == store.SenderUser {
		r.armLocked(id, timerAgentResponse, last.Timestamp, 1, last.Timestamp.Add(r.cfg.ResponseTimeout))
	}
}

// AddToQueue registers a conversation as waiting for human attention. Calling
// it again for the same conversation merges metadata into the existing entry
// instead of duplicating it. New entries get their full message history pulled
// from the message store; a failed history read is logged and the entry
// proceeds without it.
func (r *Registry) AddToQueue(ctx context.Context, item *store.QueueItem) (*store.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ent, ok := r.entries[item.ConversationID]; ok {
		if len(item.Metadata) > 0 {
			if ent.item.Metadata == nil {
				ent.item.Metadata = make(map[string]string, len(item.Metadata))
			}
			maps.Copy(ent.item.Metadata, item.Metadata)
			r.persistItemLocked(ctx, ent.item)
		}
		return copyItem(ent.item), nil
	}

	if item.StartTime.IsZero() {
		item.StartTime = time.Now()
	}
	if item.Priority == 0 {
		item.Priority = 1
	}
	ent := &entry{item: item}
	if msgs, err := r.store.ListMessages(ctx, item.ConversationID); err != nil {
		r.logger.Error("loading history for new queue entry",
			"conversation_id", item.ConversationID,
			"error", err)
	} else {
		ent.messages = msgs
	}
	r.entries[item.ConversationID] = ent

	if err := r.store.UpsertQueueItem(ctx, item); err != nil {
		r.logger.Error("persisting queue entry",
			"conversation_id", item.ConversationID,
			"error", err)
	}

	r.notify.Broadcast(&notify.Event{Type: notify.EventQueueNew, Queue: queuePayload(item)})
	r.armLocked(item.ConversationID, timerQueueWait, item.StartTime, 1, item.StartTime.Add(r.cfg.ResponseTimeout))

	r.logger.Info("conversation queued",
		"conversation_id", item.ConversationID,
		"priority", item.Priority)
	return copyItem(item), nil
}

// AssignAgent claims a conversation for an agent. It returns true when the
// agent holds the assignment afterward: a repeat call by the same agent is a
// no-op true, a call against a conversation held by a different agent is
// false, and an unknown conversation is false after reconciliation fails.
func (r *Registry) AssignAgent(ctx context.Context, conversationID, agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ent, ok := r.entries[conversationID]
	if !ok {
		ent = r.reconcileLocked(ctx, conversationID)
		if ent == nil {
			r.logger.Warn("assign for unknown conversation",
				"conversation_id", conversationID,
				"agent_id", agentID)
			return false
		}
	}

	switch ent.item.AssignedAgent {
	case agentID:
		return true
	case "":
	default:
		r.logger.Warn("assign rejected, conversation already held",
			"conversation_id", conversationID,
			"agent_id", agentID,
			"assigned_agent", ent.item.AssignedAgent)
		return false
	}

	if err := r.agents.Attach(ctx, agentID, conversationID); err != nil {
		r.logger.Error("attaching conversation to agent",
			"conversation_id", conversationID,
			"agent_id", agentID,
			"error", err)
		return false
	}

	ent.item.AssignedAgent = agentID
	r.persistItemLocked(ctx, ent.item)
	r.setConversationStatus(ctx, conversationID, store.StatusAgent)

	r.recordSystemMessageLocked(ctx, ent,
		fmt.Sprintf("Agente %s se ha unido a la conversación", agentID))

	r.clearTimerLocked(conversationID)
	if last := lastMessage(ent); last != nil && last.Sender == store.SenderUser {
		r.armLocked(conversationID, timerAgentResponse, last.Timestamp, 1, last.Timestamp.Add(r.cfg.ResponseTimeout))
	}

	r.notify.Broadcast(&notify.Event{Type: notify.EventAgentAssigned, Assignment: &notify.AssignPayload{
		ConversationID: conversationID,
		AgentID:        agentID,
	}})

	r.logger.Info("agent assigned",
		"conversation_id", conversationID,
		"agent_id", agentID)
	return true
}

// CompleteConversation tears a conversation down: timer cancelled, queue row
// and in-memory entry removed, history left intact, completion event emitted.
// It tolerates an entry that survives only in storage and repeat calls; it
// returns false only when nothing existed to complete.
func (r *Registry) CompleteConversation(ctx context.Context, conversationID string) bool {
	r.mu.Lock()

	var item *store.QueueItem
	var messageCount int
	if ent, ok := r.entries[conversationID]; ok {
		item = ent.item
		messageCount = len(ent.messages)
		delete(r.entries, conversationID)
	} else {
		row, err := r.store.GetQueueItem(ctx, conversationID)
		if err != nil {
			r.clearTimerLocked(conversationID)
			r.mu.Unlock()
			return false
		}
		item = row
		if msgs, merr := r.store.ListMessages(ctx, conversationID); merr == nil {
			messageCount = len(msgs)
		}
	}
	r.clearTimerLocked(conversationID)
	assigned := item.AssignedAgent
	r.mu.Unlock()

	if assigned != "" {
		if err := r.agents.Detach(ctx, assigned, conversationID); err != nil {
			r.logger.Error("detaching conversation from agent",
				"conversation_id", conversationID,
				"agent_id", assigned,
				"error", err)
		}
	}
	if err := r.store.DeleteQueueItem(ctx, conversationID); err != nil {
		r.logger.Error("deleting queue row",
			"conversation_id", conversationID,
			"error", err)
	}
	r.setConversationStatus(ctx, conversationID, store.StatusCompleted)
	if err := r.bot.ResumeBot(ctx, conversationID); err != nil {
		r.logger.Warn("resuming bot session after completion",
			"conversation_id", conversationID,
			"error", err)
	}

	r.notify.Broadcast(&notify.Event{Type: notify.EventConversationCompleted, Completion: &notify.CompletePayload{
		ConversationID: conversationID,
		StartTime:      item.StartTime,
		EndTime:        time.Now(),
		MessageCount:   messageCount,
		AssignedAgent:  assigned,
	}})

	r.logger.Info("conversation completed",
		"conversation_id", conversationID,
		"assigned_agent", assigned,
		"messages", messageCount)
	return true
}

// AddMessage appends a message to the conversation's history, persists it,
// and drives the response timer: a user message arms it, a reply from the
// assigned agent clears it. A message for a conversation missing from memory
// triggers reconciliation before failing. If persistence fails the in-memory
// append is rolled back and the error returned.
func (r *Registry) AddMessage(ctx context.Context, conversationID string, msg *store.Message) (*store.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.ConversationID = conversationID

	r.mu.Lock()
	ent, ok := r.entries[conversationID]
	if !ok {
		ent = r.reconcileLocked(ctx, conversationID)
		if ent == nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("conversation %s: %w", conversationID, store.ErrNotFound)
		}
	}

	ent.messages = append(ent.messages, msg)
	if err := r.store.AppendMessage(ctx, msg); err != nil {
		ent.messages = ent.messages[:len(ent.messages)-1]
		r.mu.Unlock()
		r.logger.Error("persisting message",
			"conversation_id", conversationID,
			"sender", string(msg.Sender),
			"error", err)
		return nil, fmt.Errorf("persisting message: %w", err)
	}

	switch {
	case msg.Sender == store.SenderUser && ent.item.AssignedAgent != "":
		r.armLocked(conversationID, timerAgentResponse, msg.Timestamp, 1, msg.Timestamp.Add(r.cfg.ResponseTimeout))
	case msg.Sender == store.SenderAgent && msg.AgentID == ent.item.AssignedAgent:
		r.clearTimerLocked(conversationID)
	}

	assigned := ent.item.AssignedAgent
	itemCopy := copyItem(ent.item)
	r.mu.Unlock()

	r.touchConversation(ctx, conversationID, msg.Timestamp)

	ev := &notify.Event{Type: notify.EventMessageAdded, Message: &notify.MessagePayload{
		ConversationID: conversationID,
		MessageID:      msg.ID,
		Sender:         string(msg.Sender),
		Text:           msg.Text,
		Timestamp:      msg.Timestamp,
	}}
	if assigned != "" {
		if !r.notify.SendToAgent(assigned, ev) {
			r.logger.Debug("assigned agent has no live session",
				"conversation_id", conversationID,
				"agent_id", assigned)
		}
	} else {
		r.notify.Broadcast(&notify.Event{Type: notify.EventQueueUpdated, Queue: queuePayload(itemCopy)})
	}
	return msg, nil
}

// UpdatePriority sets the entry's priority, rejecting values outside [1,5].
// Raising priority to 3 or above leaves a system message in the history.
func (r *Registry) UpdatePriority(ctx context.Context, conversationID string, priority int) error {
	if priority < 1 || priority > 5 {
		return fmt.Errorf("priority %d out of range [1,5]", priority)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ent, ok := r.entries[conversationID]
	if !ok {
		ent = r.reconcileLocked(ctx, conversationID)
		if ent == nil {
			return fmt.Errorf("conversation %s: %w", conversationID, store.ErrNotFound)
		}
	}

	ent.item.Priority = priority
	r.persistItemLocked(ctx, ent.item)
	if priority >= 3 {
		r.recordSystemMessageLocked(ctx, ent,
			fmt.Sprintf("Prioridad de la conversación elevada a %d", priority))
	}
	r.notify.Broadcast(&notify.Event{Type: notify.EventQueueUpdated, Queue: queuePayload(ent.item)})
	return nil
}

// UpdateTags replaces the entry's tag set.
func (r *Registry) UpdateTags(ctx context.Context, conversationID string, tags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ent, ok := r.entries[conversationID]
	if !ok {
		ent = r.reconcileLocked(ctx, conversationID)
		if ent == nil {
			return fmt.Errorf("conversation %s: %w", conversationID, store.ErrNotFound)
		}
	}

	ent.item.Tags = slices.Clone(tags)
	r.persistItemLocked(ctx, ent.item)
	r.notify.Broadcast(&notify.Event{Type: notify.EventQueueUpdated, Queue: queuePayload(ent.item)})
	return nil
}

// UpdateMetadata merges the patch into the entry's metadata.
func (r *Registry) UpdateMetadata(ctx context.Context, conversationID string, patch map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ent, ok := r.entries[conversationID]
	if !ok {
		ent = r.reconcileLocked(ctx, conversationID)
		if ent == nil {
			return fmt.Errorf("conversation %s: %w", conversationID, store.ErrNotFound)
		}
	}

	if ent.item.Metadata == nil {
		ent.item.Metadata = make(map[string]string, len(patch))
	}
	maps.Copy(ent.item.Metadata, patch)
	r.persistItemLocked(ctx, ent.item)
	r.notify.Broadcast(&notify.Event{Type: notify.EventQueueUpdated, Queue: queuePayload(ent.item)})
	return nil
}

// OldestUnassigned returns the unassigned entry an agent should take next:
// highest priority first, earliest queue entry breaking ties. Nil when every
// entry is assigned or the queue is empty.
func (r *Registry) OldestUnassigned() *store.QueueItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *store.QueueItem
	for _, ent := range r.entries {
		if ent.item.AssignedAgent != "" {
			continue
		}
		if best == nil ||
			ent.item.Priority > best.Priority ||
			(ent.item.Priority == best.Priority && ent.item.StartTime.Before(best.StartTime)) {
			best = ent.item
		}
	}
	if best == nil {
		return nil
	}
	return copyItem(best)
}

// Get returns a copy of the conversation's queue entry.
func (r *Registry) Get(conversationID string) (*store.QueueItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entries[conversationID]
	if !ok {
		return nil, false
	}
	return copyItem(ent.item), true
}

// Messages returns a copy of the conversation's in-memory history.
func (r *Registry) Messages(conversationID string) []*store.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entries[conversationID]
	if !ok {
		return nil
	}
	out := make([]*store.Message, len(ent.messages))
	for i, m := range ent.messages {
		c := *m
		out[i] = &c
	}
	return out
}

// List returns every queue entry, highest priority first, then oldest first.
func (r *Registry) List() []*store.QueueItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*store.QueueItem, 0, len(r.entries))
	for _, ent := range r.entries {
		out = append(out, copyItem(ent.item))
	}
	slices.SortFunc(out, func(a, b *store.QueueItem) int {
		if a.Priority != b.Priority {
			return b.Priority - a.Priority
		}
		return a.StartTime.Compare(b.StartTime)
	})
	return out
}

// RedirectToBot returns a conversation to automated handling without marking
// it completed: assignment cleared, queue row and entry removed, bot session
// resumed. Used by the SLA ladder's final stage.
func (r *Registry) RedirectToBot(ctx context.Context, conversationID, reason string) {
	r.mu.Lock()
	r.clearTimerLocked(conversationID)
	var previousAgent string
	if ent, ok := r.entries[conversationID]; ok {
		previousAgent = ent.item.AssignedAgent
		delete(r.entries, conversationID)
	}
	r.mu.Unlock()

	if previousAgent != "" {
		if err := r.agents.Detach(ctx, previousAgent, conversationID); err != nil {
			r.logger.Error("detaching conversation from agent",
				"conversation_id", conversationID,
				"agent_id", previousAgent,
				"error", err)
		}
	}
	if err := r.store.DeleteQueueItem(ctx, conversationID); err != nil {
		r.logger.Error("deleting queue row on redirect",
			"conversation_id", conversationID,
			"error", err)
	}
	r.setConversationStatus(ctx, conversationID, store.StatusBot)
	if err := r.bot.ResumeBot(ctx, conversationID); err != nil {
		r.logger.Error("resuming bot session",
			"conversation_id", conversationID,
			"error", err)
	}

	r.notify.Broadcast(&notify.Event{Type: notify.EventConversationRedirected, Redirect: &notify.RedirectPayload{
		ConversationID: conversationID,
		PreviousAgent:  previousAgent,
		Reason:         reason,
	}})

	r.logger.Info("conversation redirected to bot",
		"conversation_id", conversationID,
		"previous_agent", previousAgent,
		"reason", reason)
}

// reconcileLocked rebuilds a missing in-memory entry from storage. The
// conversation must exist and be in a queued status; a missing queue row is
// reconstructed with defaults and flagged so operators can see the gap.
// Returns nil when the conversation is unrecoverable. Caller holds r.mu.
func (r *Registry) reconcileLocked(ctx context.Context, conversationID string) *entry {
	conv, err := r.store.GetConversation(ctx, conversationID)
	if err != nil {
		r.logger.Warn("reconciliation failed, conversation unknown",
			"conversation_id", conversationID,
			"error", err)
		return nil
	}
	if conv.Status != store.StatusWaiting && conv.Status != store.StatusAgent {
		r.logger.Warn("reconciliation refused, conversation not queued",
			"conversation_id", conversationID,
			"status", string(conv.Status))
		return nil
	}

	item, err := r.store.GetQueueItem(ctx, conversationID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		item = &store.QueueItem{
			ConversationID: conversationID,
			ChannelID:      conv.ChannelID,
			StartTime:      time.Now(),
			Priority:       1,
			Metadata:       map[string]string{"recovered": "missing queue row"},
		}
		r.logger.Warn("queue row missing for queued conversation, reconstructing defaults",
			"conversation_id", conversationID,
			"status", string(conv.Status),
			"degraded", true)
		r.persistItemLocked(ctx, item)
	default:
		r.logger.Error("reconciliation failed reading queue row",
			"conversation_id", conversationID,
			"error", err)
		return nil
	}

	ent := &entry{item: item}
	if msgs, err := r.store.ListMessages(ctx, conversationID); err != nil {
		r.logger.Error("reconciliation could not reload history",
			"conversation_id", conversationID,
			"error", err)
	} else {
		ent.messages = msgs
	}
	r.entries[conversationID] = ent
	r.armForEntryLocked(ent)

	r.logger.Info("conversation reconciled from storage",
		"conversation_id", conversationID,
		"assigned_agent", item.AssignedAgent,
		"messages", len(ent.messages))
	return ent
}

// recordSystemMessage is the unlocked wrapper used by timer callbacks.
func (r *Registry) recordSystemMessage(ctx context.Context, conversationID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entries[conversationID]
	if !ok {
		return
	}
	r.recordSystemMessageLocked(ctx, ent, text)
}

// recordSystemMessageLocked appends a system message to memory and storage
// without touching timers. Persistence failure drops the memory copy too so
// history and storage stay aligned. Caller holds r.mu.
func (r *Registry) recordSystemMessageLocked(ctx context.Context, ent *entry, text string) {
	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: ent.item.ConversationID,
		Sender:         store.SenderSystem,
		Text:           text,
		Timestamp:      time.Now(),
	}
	if err := r.store.AppendMessage(ctx, msg); err != nil {
		r.logger.Error("persisting system message",
			"conversation_id", ent.item.ConversationID,
			"error", err)
		return
	}
	ent.messages = append(ent.messages, msg)
}

// persistItemLocked writes the queue row, logging instead of failing: memory
// stays authoritative and storage catches up on the next write or reload.
func (r *Registry) persistItemLocked(ctx context.Context, item *store.QueueItem) {
	if err := r.store.UpsertQueueItem(ctx, item); err != nil {
		r.logger.Error("persisting queue entry",
			"conversation_id", item.ConversationID,
			"error", err)
	}
}

// setConversationStatus moves the durable conversation record, tolerating a
// record that no longer exists.
func (r *Registry) setConversationStatus(ctx context.Context, conversationID string, status store.ConversationStatus) {
	conv, err := r.store.GetConversation(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger.Error("reading conversation for status change",
				"conversation_id", conversationID,
				"error", err)
		}
		return
	}
	conv.Status = status
	conv.LastActivity = time.Now()
	if err := r.store.UpdateConversation(ctx, conv); err != nil {
		r.logger.Error("updating conversation status",
			"conversation_id", conversationID,
			"status", string(status),
			"error", err)
	}
}

func (r *Registry) touchConversation(ctx context.Context, conversationID string, at time.Time) {
	conv, err := r.store.GetConversation(ctx, conversationID)
	if err != nil {
		return
	}
	conv.LastActivity = at
	if err := r.store.UpdateConversation(ctx, conv); err != nil {
		r.logger.Error("updating last activity",
			"conversation_id", conversationID,
			"error", err)
	}
}

func lastMessage(ent *entry) *store.Message {
	if len(ent.messages) == 0 {
		return nil
	}
	return ent.messages[len(ent.messages)-1]
}

func copyItem(item *store.QueueItem) *store.QueueItem {
	c := *item
	c.Tags = slices.Clone(item.Tags)
	c.Metadata = maps.Clone(item.Metadata)
	return &c
}

func queuePayload(item *store.QueueItem) *notify.QueuePayload {
	return &notify.QueuePayload{
		ConversationID: item.ConversationID,
		Priority:       item.Priority,
		Tags:           slices.Clone(item.Tags),
		AssignedAgent:  item.AssignedAgent,
		StartTime:      item.StartTime,
	}
}
