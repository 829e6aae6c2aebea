// ABOUTME: Manages the agent directory, status, and concurrent-conversation load.
// ABOUTME: Owns capacity bookkeeping consumed by the conversation registry.

package directory

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/2389/handoff-gateway/internal/store"
)

// ErrAgentAlreadyRegistered indicates an agent with the same ID already exists.
var ErrAgentAlreadyRegistered = errors.New("agent already registered")

// ErrAgentNotFound indicates the specified agent was not found.
var ErrAgentNotFound = errors.New("agent not found")

// AgentStore is what the directory needs from persistence.
type AgentStore interface {
	SaveAgent(ctx context.Context, agent *store.Agent) error
	GetAgent(ctx context.Context, id string) (*store.Agent, error)
	ListAgents(ctx context.Context) ([]*store.Agent, error)
}

// Directory is the authoritative record of agents, their status, and their
// load. The registry only enforces single-assignment-per-conversation;
// capacity policy lives here.
type Directory struct {
	mu     sync.RWMutex
	agents map[string]*store.Agent
	store  AgentStore
	logger *slog.Logger
}

// New creates an empty directory backed by the given store.
func New(agentStore AgentStore, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		agents: make(map[string]*store.Agent),
		store:  agentStore,
		logger: logger.With("component", "directory"),
	}
}

// Load populates the directory from persisted agent rows. Agents come back
// offline; sessions re-announce themselves on reconnect.
func (d *Directory) Load(ctx context.Context) error {
	agents, err := d.store.ListAgents(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range agents {
		a.Status = store.AgentOffline
		a.ActiveConversations = nil
		d.agents[a.ID] = a
	}
	d.logger.Info("agent directory loaded", "agents", len(d.agents))
	return nil
}

// Register adds a new agent. Returns ErrAgentAlreadyRegistered on duplicates.
func (d *Directory) Register(ctx context.Context, agent *store.Agent) error {
	d.mu.Lock()
	if _, exists := d.agents[agent.ID]; exists {
		d.mu.Unlock()
		return ErrAgentAlreadyRegistered
	}
	if agent.MaxConcurrentChats <= 0 {
		agent.MaxConcurrentChats = 3
	}
	if agent.Status == "" {
		agent.Status = store.AgentOffline
	}
	agent.LastActivity = time.Now()
	copied := *agent
	d.agents[agent.ID] = &copied
	d.mu.Unlock()

	d.logger.Info("agent registered", "agent_id", agent.ID, "name", agent.Name)
	return d.persist(ctx, agent.ID)
}

// SetStatus updates an agent's availability status.
func (d *Directory) SetStatus(ctx context.Context, agentID string, status store.AgentStatus) error {
	d.mu.Lock()
	agent, ok := d.agents[agentID]
	if !ok {
		d.mu.Unlock()
		return ErrAgentNotFound
	}
	agent.Status = status
	agent.LastActivity = time.Now()
	d.mu.Unlock()

	return d.persist(ctx, agentID)
}

// Get returns a copy of the agent record.
func (d *Directory) Get(agentID string) (*store.Agent, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	agent, ok := d.agents[agentID]
	if !ok {
		return nil, false
	}
	copied := *agent
	copied.ActiveConversations = append([]string(nil), agent.ActiveConversations...)
	return &copied, true
}

// List returns copies of all agent records.
func (d *Directory) List() []*store.Agent {
	d.mu.RLock()
	defer d.mu.RUnlock()

	agents := make([]*store.Agent, 0, len(d.agents))
	for _, agent := range d.agents {
		copied := *agent
		copied.ActiveConversations = append([]string(nil), agent.ActiveConversations...)
		agents = append(agents, &copied)
	}
	return agents
}

// Attach records that an agent took over a conversation. When the active set
// reaches the agent's capacity its status flips to busy.
func (d *Directory) Attach(ctx context.Context, agentID, conversationID string) error {
	d.mu.Lock()
	agent, ok := d.agents[agentID]
	if !ok {
		d.mu.Unlock()
		return ErrAgentNotFound
	}
	if !slices.Contains(agent.ActiveConversations, conversationID) {
		agent.ActiveConversations = append(agent.ActiveConversations, conversationID)
	}
	if len(agent.ActiveConversations) >= agent.MaxConcurrentChats {
		agent.Status = store.AgentBusy
	}
	agent.LastActivity = time.Now()
	load := len(agent.ActiveConversations)
	status := agent.Status
	d.mu.Unlock()

	d.logger.Debug("conversation attached",
		"agent_id", agentID, "conversation_id", conversationID,
		"load", load, "status", status)
	return d.persist(ctx, agentID)
}

// Detach records that a conversation left an agent's active set. A busy agent
// that drops below capacity goes back to online.
func (d *Directory) Detach(ctx context.Context, agentID, conversationID string) error {
	d.mu.Lock()
	agent, ok := d.agents[agentID]
	if !ok {
		d.mu.Unlock()
		return ErrAgentNotFound
	}
	agent.ActiveConversations = slices.DeleteFunc(agent.ActiveConversations, func(id string) bool {
		return id == conversationID
	})
	if agent.Status == store.AgentBusy && len(agent.ActiveConversations) < agent.MaxConcurrentChats {
		agent.Status = store.AgentOnline
	}
	agent.LastActivity = time.Now()
	d.mu.Unlock()

	return d.persist(ctx, agentID)
}

// persist writes the current in-memory record through to the store. Storage
// failures are logged, not propagated; the in-memory record stays authoritative
// until the next successful write.
func (d *Directory) persist(ctx context.Context, agentID string) error {
	agent, ok := d.Get(agentID)
	if !ok {
		return ErrAgentNotFound
	}
	if err := d.store.SaveAgent(ctx, agent); err != nil {
		d.logger.Error("failed to persist agent", "agent_id", agentID, "error", err)
	}
	return nil
}
