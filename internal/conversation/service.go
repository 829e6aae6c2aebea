// ABOUTME: Conversation lifecycle service routing traffic between user, bot, and agents
// ABOUTME: Owns creation, escalation on bot replies, and the inactivity sweep

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/2389/handoff-gateway/internal/bridge"
	"github.com/2389/handoff-gateway/internal/dedupe"
	"github.com/2389/handoff-gateway/internal/escalation"
	"github.com/2389/handoff-gateway/internal/queue"
	"github.com/2389/handoff-gateway/internal/store"
)

// ErrNotAssigned is returned when an agent writes to a conversation another
// agent holds, or to one nobody has claimed.
var ErrNotAssigned = errors.New("conversation not assigned to this agent")

// Store is the persistence slice the service needs beyond the registry.
type Store interface {
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	UpdateConversation(ctx context.Context, conv *store.Conversation) error
	ListConversationsIdleSince(ctx context.Context, cutoff time.Time) ([]*store.Conversation, error)
	AppendMessage(ctx context.Context, msg *store.Message) error
}

// Config carries the service's behavioral settings.
type Config struct {
	TransferMessage   string
	InactivityTimeout time.Duration
}

// Service drives a conversation's lifecycle: bot-owned by default, escalated
// into the queue when the bot asks for a human, and completed or swept when
// it goes quiet.
type Service struct {
	cfg      Config
	store    Store
	registry *queue.Registry
	detector *escalation.Detector
	bot      bridge.BotBridge
	channel  bridge.ChannelSender
	seen     *dedupe.Cache
	logger   *slog.Logger
}

// New wires the service. All collaborators are required except seen, which
// may be nil when the transport already deduplicates deliveries.
func New(cfg Config, st Store, registry *queue.Registry, detector *escalation.Detector, bot bridge.BotBridge, channel bridge.ChannelSender, seen *dedupe.Cache, logger *slog.Logger) *Service {
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		store:    st,
		registry: registry,
		detector: detector,
		bot:      bot,
		channel:  channel,
		seen:     seen,
		logger:   logger.With("component", "conversation"),
	}
}

// HandleUserMessage routes an inbound channel message. A first contact
// creates the conversation and a bot session; while the bot owns the
// conversation the text is forwarded to it; once queued or assigned the text
// flows through the registry to the human side instead.
func (s *Service) HandleUserMessage(ctx context.Context, in *bridge.InboundMessage) error {
	if s.seen != nil && in.UpdateID != 0 && s.seen.Seen(strconv.FormatInt(in.UpdateID, 10)) {
		s.logger.Debug("duplicate update dropped", "update_id", in.UpdateID)
		return nil
	}

	conv, err := s.store.GetConversation(ctx, in.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		conv, err = s.createConversation(ctx, in)
		if err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("loading conversation %s: %w", in.UserID, err)
	case conv.Status == store.StatusCompleted:
		conv, err = s.reopenConversation(ctx, conv)
		if err != nil {
			return err
		}
	}

	if conv.Status == store.StatusWaiting || conv.Status == store.StatusAgent {
		_, err := s.registry.AddMessage(ctx, conv.ID, &store.Message{
			Sender: store.SenderUser,
			Text:   in.Text,
		})
		return err
	}

	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Sender:         store.SenderUser,
		Text:           in.Text,
		Timestamp:      time.Now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return fmt.Errorf("persisting user message: %w", err)
	}
	conv.LastActivity = msg.Timestamp
	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		s.logger.Error("updating last activity", "conversation_id", conv.ID, "error", err)
	}

	if err := s.bot.SendToBot(ctx, conv.ID, in.Text); err != nil {
		return fmt.Errorf("forwarding to bot: %w", err)
	}
	return nil
}

// HandleBotReply processes the bot's asynchronous answer. A trigger phrase in
// the reply escalates the conversation into the human queue; otherwise the
// reply is recorded and relayed to the user.
func (s *Service) HandleBotReply(ctx context.Context, conversationID, text string) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading conversation %s: %w", conversationID, err)
	}
	if conv.Status == store.StatusWaiting || conv.Status == store.StatusAgent {
		// Late bot reply on an already-escalated conversation; keep it in the
		// history but do not relay it, the human side owns the user now.
		_, err := s.registry.AddMessage(ctx, conversationID, &store.Message{
			Sender: store.SenderBot,
			Text:   text,
		})
		return err
	}

	if phrase := s.detector.Match(text); phrase != "" {
		return s.escalate(ctx, conv, text, phrase)
	}

	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         store.SenderBot,
		Text:           text,
		Timestamp:      time.Now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		s.logger.Error("persisting bot reply", "conversation_id", conversationID, "error", err)
	}
	if !s.channel.SendToUser(ctx, conv.ChannelID, conversationID, text) {
		return fmt.Errorf("delivering bot reply to user %s", conversationID)
	}
	return nil
}

// escalate moves a bot-owned conversation into the human queue. The registry
// pulls the full history into the new entry; the triggering bot reply is then
// appended unless it already closed the history.
func (s *Service) escalate(ctx context.Context, conv *store.Conversation, botText, phrase string) error {
	s.logger.Info("escalation triggered",
		"conversation_id", conv.ID,
		"phrase", phrase)

	conv.Escalated = true
	conv.Status = store.StatusWaiting
	conv.LastActivity = time.Now()
	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		s.logger.Error("marking conversation escalated", "conversation_id", conv.ID, "error", err)
	}

	if !s.channel.SendToUser(ctx, conv.ChannelID, conv.ID, s.cfg.TransferMessage) {
		s.logger.Error("transfer confirmation delivery failed", "conversation_id", conv.ID)
	}

	_, err := s.registry.AddToQueue(ctx, &store.QueueItem{
		ConversationID: conv.ID,
		ChannelID:      conv.ChannelID,
		Metadata:       map[string]string{"escalation_reason": phrase},
	})
	if err != nil {
		return fmt.Errorf("queueing conversation %s: %w", conv.ID, err)
	}

	if !historyEndsWith(s.registry.Messages(conv.ID), store.SenderBot, botText) {
		if _, err := s.registry.AddMessage(ctx, conv.ID, &store.Message{
			Sender: store.SenderBot,
			Text:   botText,
		}); err != nil {
			s.logger.Error("recording triggering bot reply", "conversation_id", conv.ID, "error", err)
		}
	}
	return nil
}

// HandleAgentMessage records an agent's reply and relays it to the user. The
// writing agent must hold the assignment.
func (s *Service) HandleAgentMessage(ctx context.Context, conversationID, agentID, text string) error {
	item, ok := s.registry.Get(conversationID)
	if !ok || item.AssignedAgent != agentID {
		return fmt.Errorf("conversation %s, agent %s: %w", conversationID, agentID, ErrNotAssigned)
	}

	if _, err := s.registry.AddMessage(ctx, conversationID, &store.Message{
		Sender:  store.SenderAgent,
		AgentID: agentID,
		Text:    text,
	}); err != nil {
		return err
	}

	if !s.channel.SendToUser(ctx, item.ChannelID, conversationID, text) {
		return fmt.Errorf("delivering agent reply to user %s", conversationID)
	}
	return nil
}

// SweepInactive completes conversations with no activity inside the
// inactivity window. Queued conversations go through the registry so timers
// and capacity unwind; bot-owned ones are just marked completed.
func (s *Service) SweepInactive(ctx context.Context) int {
	cutoff := time.Now().Add(-s.cfg.InactivityTimeout)
	stale, err := s.store.ListConversationsIdleSince(ctx, cutoff)
	if err != nil {
		s.logger.Error("listing idle conversations", "error", err)
		return 0
	}

	var swept int
	for _, conv := range stale {
		if conv.Status == store.StatusCompleted {
			continue
		}
		if conv.Status == store.StatusWaiting || conv.Status == store.StatusAgent {
			if s.registry.CompleteConversation(ctx, conv.ID) {
				swept++
			}
			continue
		}
		conv.Status = store.StatusCompleted
		if err := s.store.UpdateConversation(ctx, conv); err != nil {
			s.logger.Error("completing idle conversation", "conversation_id", conv.ID, "error", err)
			continue
		}
		swept++
	}
	if swept > 0 {
		s.logger.Info("idle conversations completed", "count", swept)
	}
	return swept
}

func (s *Service) createConversation(ctx context.Context, in *bridge.InboundMessage) (*store.Conversation, error) {
	sess, err := s.bot.CreateSession(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("creating bot session for %s: %w", in.UserID, err)
	}
	now := time.Now()
	conv := &store.Conversation{
		ID:                in.UserID,
		ChannelID:         in.ChannelID,
		BotSessionID:      sess.ID,
		BotToken:          sess.Token,
		BotTokenFetchedAt: sess.FetchedAt,
		Status:            store.StatusBot,
		LastActivity:      now,
		CreatedAt:         now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("persisting conversation %s: %w", in.UserID, err)
	}
	s.logger.Info("conversation created", "conversation_id", conv.ID, "channel_id", conv.ChannelID)
	return conv, nil
}

// reopenConversation gives a completed conversation a fresh bot session and
// returns it to bot ownership, keeping the old history in place.
func (s *Service) reopenConversation(ctx context.Context, conv *store.Conversation) (*store.Conversation, error) {
	sess, err := s.bot.CreateSession(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("reopening bot session for %s: %w", conv.ID, err)
	}
	conv.BotSessionID = sess.ID
	conv.BotToken = sess.Token
	conv.BotTokenFetchedAt = sess.FetchedAt
	conv.Status = store.StatusBot
	conv.Escalated = false
	conv.LastActivity = time.Now()
	if err := s.store.UpdateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("reopening conversation %s: %w", conv.ID, err)
	}
	s.logger.Info("conversation reopened", "conversation_id", conv.ID)
	return conv, nil
}

func historyEndsWith(msgs []*store.Message, sender store.Sender, text string) bool {
	if len(msgs) == 0 {
		return false
	}
	last := msgs[len(msgs)-1]
	return last.Sender == sender && last.Text == text
}
