// ABOUTME: Per-conversation response timers driving the two-stage SLA ladder
// ABOUTME: Generation counters make logically-cancelled timers fire as no-ops

package queue

import (
	"context"
	"time"

	"github.com/2389/handoff-gateway/internal/store"
)

type timerMode int

const (
	// timerQueueWait tracks how long a conversation has sat unassigned.
	timerQueueWait timerMode = iota
	// timerAgentResponse tracks how long a user message has gone unanswered
	// by the assigned agent.
	timerAgentResponse
)

func (m timerMode) String() string {
	if m == timerQueueWait {
		return "queue_wait"
	}
	return "agent_response"
}

// timerSlot is the single active timer for one conversation. A slot is only
// ever replaced, never run alongside another for the same conversation.
type timerSlot struct {
	gen    uint64
	timer  *time.Timer
	mode   timerMode
	anchor time.Time
	stage  int
}

// armLocked replaces the conversation's timer with a new one firing at
// deadline. The anchor records the event being watched (queue entry or user
// message) so the fire-time re-check can inspect history relative to it. An
// already-elapsed deadline fires immediately. Caller holds r.mu.
func (r *Registry) armLocked(conversationID string, mode timerMode, anchor time.Time, stage int, deadline time.Time) {
	slot := r.timers[conversationID]
	if slot == nil {
		slot = &timerSlot{}
		r.timers[conversationID] = slot
	} else if slot.timer != nil {
		slot.timer.Stop()
	}

	r.timerGen++
	gen := r.timerGen
	slot.gen = gen
	slot.mode = mode
	slot.anchor = anchor
	slot.stage = stage

	delay := time.Until(deadline)
	if delay < 0 {
		delay = 0
	}
	slot.timer = time.AfterFunc(delay, func() {
		r.timerFired(conversationID, gen)
	})
}

// clearTimerLocked cancels and discards the conversation's timer, if any.
// A callback already past its Stop() will see a missing slot and no-op.
// Caller holds r.mu.
func (r *Registry) clearTimerLocked(conversationID string) {
	slot, ok := r.timers[conversationID]
	if !ok {
		return
	}
	if slot.timer != nil {
		slot.timer.Stop()
	}
	delete(r.timers, conversationID)
}

// timerFired runs when a stage deadline elapses. State may have moved on
// since the timer was armed, so everything is re-checked against the current
// entry before any side effect.
func (r *Registry) timerFired(conversationID string, gen uint64) {
	ctx := context.Background()

	r.mu.Lock()
	slot, ok := r.timers[conversationID]
	if !ok || slot.gen != gen {
		r.mu.Unlock()
		return
	}
	ent, ok := r.entries[conversationID]
	if !ok {
		delete(r.timers, conversationID)
		r.mu.Unlock()
		return
	}
	mode, stage, anchor := slot.mode, slot.stage, slot.anchor
	if r.resolvedLocked(ent, mode, anchor) {
		delete(r.timers, conversationID)
		r.mu.Unlock()
		return
	}

	if stage == 1 {
		item := ent.item
		r.armLocked(conversationID, mode, anchor, 2, time.Now().Add(r.stage2Timeout()))
		r.mu.Unlock()

		r.logger.Info("response deadline missed, warning user",
			"conversation_id", conversationID,
			"timer", mode.String())
		if !r.channel.SendToUser(ctx, item.ChannelID, item.ConversationID, r.cfg.WaitingMessage) {
			r.logger.Error("waiting message delivery failed", "conversation_id", conversationID)
		}
		r.recordSystemMessage(ctx, conversationID, "Se ha enviado un mensaje de espera al usuario")
		return
	}

	delete(r.timers, conversationID)
	r.mu.Unlock()

	r.logger.Warn("response deadline missed twice, returning conversation to bot",
		"conversation_id", conversationID,
		"timer", mode.String())
	r.RedirectToBot(ctx, conversationID, mode.String()+"_timeout")
}

// resolvedLocked reports whether the condition the timer was watching has
// cleared: an agent arrived for a queue-wait timer, or the assigned agent
// replied after the anchoring user message. Caller holds r.mu.
func (r *Registry) resolvedLocked(ent *entry, mode timerMode, anchor time.Time) bool {
	switch mode {
	case timerQueueWait:
		return ent.item.AssignedAgent != ""
	case timerAgentResponse:
		if ent.item.AssignedAgent == "" {
			// Assignment was torn down; the queue-wait path owns it now.
			return true
		}
		return agentRepliedSince(ent, anchor)
	}
	return true
}

func agentRepliedSince(ent *entry, anchor time.Time) bool {
	for i := len(ent.messages) - 1; i >= 0; i-- {
		m := ent.messages[i]
		if m.Timestamp.Before(anchor) {
			return false
		}
		if m.Sender == store.SenderAgent && m.AgentID == ent.item.AssignedAgent {
			return true
		}
	}
	return false
}

func (r *Registry) stage2Timeout() time.Duration {
	return time.Duration(float64(r.cfg.ResponseTimeout) * r.cfg.RedirectMultiplier)
}
