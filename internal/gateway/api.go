// ABOUTME: HTTP handlers for the agent console API and channel webhooks
// ABOUTME: JSON in, JSON out, with not-found and conflict mapped to status codes

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2389/handoff-gateway/internal/conversation"
	"github.com/2389/handoff-gateway/internal/directory"
	"github.com/2389/handoff-gateway/internal/store"
)

// queueItemResponse is the wire shape of a queue entry.
type queueItemResponse struct {
	ConversationID string            `json:"conversation_id"`
	ChannelID      string            `json:"channel_id,omitempty"`
	StartTime      time.Time         `json:"start_time"`
	Priority       int               `json:"priority"`
	Tags           []string          `json:"tags,omitempty"`
	AssignedAgent  string            `json:"assigned_agent,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// messageResponse is the wire shape of a stored message.
type messageResponse struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	AgentID   string    `json:"agent_id,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// agentResponse is the wire shape of a directory entry.
type agentResponse struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Status              string   `json:"status"`
	Role                string   `json:"role,omitempty"`
	ActiveConversations []string `json:"active_conversations,omitempty"`
	MaxConcurrentChats  int      `json:"max_concurrent_chats"`
}

func toQueueItemResponse(item *store.QueueItem) queueItemResponse {
	return queueItemResponse{
		ConversationID: item.ConversationID,
		ChannelID:      item.ChannelID,
		StartTime:      item.StartTime,
		Priority:       item.Priority,
		Tags:           item.Tags,
		AssignedAgent:  item.AssignedAgent,
		Metadata:       item.Metadata,
	}
}

func toMessageResponse(msg *store.Message) messageResponse {
	return messageResponse{
		ID:        msg.ID,
		Sender:    string(msg.Sender),
		AgentID:   msg.AgentID,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	}
}

func toAgentResponse(agent *store.Agent) agentResponse {
	return agentResponse{
		ID:                  agent.ID,
		Name:                agent.Name,
		Status:              string(agent.Status),
		Role:                agent.Role,
		ActiveConversations: agent.ActiveConversations,
		MaxConcurrentChats:  agent.MaxConcurrentChats,
	}
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("encoding response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once at least one agent is available to take
// conversations.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	var available int
	for _, a := range g.directory.List() {
		if a.Status == store.AgentOnline || a.Status == store.AgentBusy {
			available++
		}
	}
	if available == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no agents available"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (g *Gateway) handleListQueue(w http.ResponseWriter, r *http.Request) {
	items := g.registry.List()
	out := make([]queueItemResponse, len(items))
	for i, item := range items {
		out[i] = toQueueItemResponse(item)
	}
	g.writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) handleNextInQueue(w http.ResponseWriter, r *http.Request) {
	item := g.registry.OldestUnassigned()
	if item == nil {
		g.sendJSONError(w, http.StatusNotFound, "queue is empty")
		return
	}
	g.writeJSON(w, http.StatusOK, toQueueItemResponse(item))
}

func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msgs := g.registry.Messages(id)
	if msgs == nil {
		// Not in the working set; history still lives in the message store.
		stored, err := g.store.ListMessages(r.Context(), id)
		if err != nil {
			g.sendJSONError(w, http.StatusInternalServerError, "listing messages")
			return
		}
		msgs = stored
	}
	out := make([]messageResponse, len(msgs))
	for i, m := range msgs {
		out[i] = toMessageResponse(m)
	}
	g.writeJSON(w, http.StatusOK, out)
}

type agentMessageRequest struct {
	AgentID string `json:"agent_id"`
	Text    string `json:"text"`
}

func (g *Gateway) handleAgentMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req agentMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" || req.Text == "" {
		g.sendJSONError(w, http.StatusBadRequest, "agent_id and text are required")
		return
	}

	err := g.service.HandleAgentMessage(r.Context(), id, req.AgentID, req.Text)
	switch {
	case errors.Is(err, conversation.ErrNotAssigned):
		g.sendJSONError(w, http.StatusConflict, "conversation not assigned to this agent")
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
	case err != nil:
		g.sendJSONError(w, http.StatusInternalServerError, "sending message")
	default:
		g.writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
	}
}

type assignRequest struct {
	AgentID string `json:"agent_id"`
}

func (g *Gateway) handleAssign(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	if !g.registry.AssignAgent(r.Context(), id, req.AgentID) {
		g.sendJSONError(w, http.StatusConflict, "conversation unknown or already assigned")
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]bool{"assigned": true})
}

func (g *Gateway) handleComplete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !g.registry.CompleteConversation(r.Context(), id) {
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]bool{"completed": true})
}

type priorityRequest struct {
	Priority int `json:"priority"`
}

func (g *Gateway) handlePriority(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req priorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := g.registry.UpdatePriority(r.Context(), id, req.Priority)
	switch {
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
	case err != nil:
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	default:
		g.writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
	}
}

type tagsRequest struct {
	Tags     []string          `json:"tags"`
	Metadata map[string]string `json:"metadata"`
}

func (g *Gateway) handleTags(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req tagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Tags != nil {
		if err := g.registry.UpdateTags(r.Context(), id, req.Tags); err != nil {
			g.sendJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
	}
	if len(req.Metadata) > 0 {
		if err := g.registry.UpdateMetadata(r.Context(), id, req.Metadata); err != nil {
			g.sendJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
	}
	g.writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (g *Gateway) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := g.directory.List()
	out := make([]agentResponse, len(agents))
	for i, a := range agents {
		out[i] = toAgentResponse(a)
	}
	g.writeJSON(w, http.StatusOK, out)
}

type registerAgentRequest struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	MaxConcurrentChats int    `json:"max_concurrent_chats"`
}

func (g *Gateway) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "id is required")
		return
	}

	err := g.directory.Register(r.Context(), &store.Agent{
		ID:                 req.ID,
		Name:               req.Name,
		Role:               req.Role,
		Status:             store.AgentOnline,
		MaxConcurrentChats: req.MaxConcurrentChats,
	})
	switch {
	case errors.Is(err, directory.ErrAgentAlreadyRegistered):
		g.sendJSONError(w, http.StatusConflict, "agent already registered")
	case err != nil:
		g.sendJSONError(w, http.StatusInternalServerError, "registering agent")
	default:
		agent, _ := g.directory.Get(req.ID)
		g.writeJSON(w, http.StatusCreated, toAgentResponse(agent))
	}
}

type agentStatusRequest struct {
	Status string `json:"status"`
}

func (g *Gateway) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req agentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status := store.AgentStatus(req.Status)
	switch status {
	case store.AgentOffline, store.AgentOnline, store.AgentBusy, store.AgentAway:
	default:
		g.sendJSONError(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := g.directory.SetStatus(r.Context(), id, status); err != nil {
		g.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// handleTelegramWebhook acknowledges every delivery with 200 so Telegram
// never retries into a processing failure; problems are logged and the
// dedupe cache absorbs genuine redeliveries.
func (g *Gateway) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}()

	if g.telegram == nil {
		return
	}
	in, err := g.telegram.DecodeUpdate(r.Body)
	if err != nil {
		g.logger.Warn("undecodable telegram update", "error", err)
		return
	}
	if in == nil {
		return
	}
	if err := g.service.HandleUserMessage(r.Context(), in); err != nil {
		g.logger.Error("handling telegram update",
			"conversation_id", in.UserID,
			"error", err)
	}
}

type botReplyRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// handleBotWebhook receives the bot platform's asynchronous replies.
func (g *Gateway) handleBotWebhook(w http.ResponseWriter, r *http.Request) {
	var req botReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "conversation_id and text are required")
		return
	}

	err := g.service.HandleBotReply(r.Context(), req.ConversationID, req.Text)
	switch {
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
	case err != nil:
		g.sendJSONError(w, http.StatusInternalServerError, "processing bot reply")
	default:
		g.writeJSON(w, http.StatusOK, map[string]bool{"processed": true})
	}
}
