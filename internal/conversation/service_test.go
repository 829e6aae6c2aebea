// ABOUTME: Tests for the conversation lifecycle service
// ABOUTME: Covers routing, escalation, agent replies, and the inactivity sweep

package conversation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/handoff-gateway/internal/bridge"
	"github.com/2389/handoff-gateway/internal/dedupe"
	"github.com/2389/handoff-gateway/internal/escalation"
	"github.com/2389/handoff-gateway/internal/notify"
	"github.com/2389/handoff-gateway/internal/queue"
	"github.com/2389/handoff-gateway/internal/store"
)

type fakeBot struct {
	mu       sync.Mutex
	sessions int
	sent     []string
	resumed  []string
}

func (f *fakeBot) CreateSession(_ context.Context, userID string) (*bridge.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	return &bridge.Session{
		ID:        fmt.Sprintf("sess-%d", f.sessions),
		Token:     "tok",
		FetchedAt: time.Now(),
	}, nil
}

func (f *fakeBot) SendToBot(_ context.Context, conversationID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, conversationID+": "+text)
	return nil
}

func (f *fakeBot) ResumeBot(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = append(f.resumed, conversationID)
	return nil
}

type fakeChannel struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeChannel) SendToUser(_ context.Context, _, recipient, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recipient+": "+text)
	return true
}

func (f *fakeChannel) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type nopNotifier struct{}

func (nopNotifier) SendToAgent(string, *notify.Event) bool { return true }
func (nopNotifier) Broadcast(*notify.Event)                {}

type nopAgents struct{}

func (nopAgents) Attach(context.Context, string, string) error { return nil }
func (nopAgents) Detach(context.Context, string, string) error { return nil }

type serviceFixture struct {
	service  *Service
	registry *queue.Registry
	store    *store.MockStore
	bot      *fakeBot
	channel  *fakeChannel
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &serviceFixture{
		store:   store.NewMockStore(),
		bot:     &fakeBot{},
		channel: &fakeChannel{},
	}
	f.registry = queue.New(queue.Config{ResponseTimeout: time.Minute}, f.store,
		nopAgents{}, nopNotifier{}, f.channel, f.bot, logger)
	detector := escalation.NewDetector([]string{"te transfiero con un agente"})
	f.service = New(Config{TransferMessage: "Te transferimos con un agente"},
		f.store, f.registry, detector, f.bot, f.channel, nil, logger)
	return f
}

func userMsg(id int64, user, text string) *bridge.InboundMessage {
	return &bridge.InboundMessage{
		UpdateID:  id,
		ChannelID: "100",
		UserID:    user,
		Text:      text,
	}
}

func TestFirstContactCreatesConversationAndForwards(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(1, "juan", "hola")))

	conv, err := f.store.GetConversation(ctx, "juan")
	require.NoError(t, err)
	assert.Equal(t, store.StatusBot, conv.Status)
	assert.Equal(t, "sess-1", conv.BotSessionID)

	assert.Equal(t, []string{"juan: hola"}, f.bot.sent)

	msgs, err := f.store.ListMessages(ctx, "juan")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.SenderUser, msgs[0].Sender)
}

func TestBotReplyRelayedToUser(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(1, "juan", "hola")))
	require.NoError(t, f.service.HandleBotReply(ctx, "juan", "Buenos días, ¿en qué puedo ayudarle?"))

	texts := f.channel.sentTexts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Buenos días")

	conv, err := f.store.GetConversation(ctx, "juan")
	require.NoError(t, err)
	assert.Equal(t, store.StatusBot, conv.Status)
}

func TestBotTriggerPhraseEscalates(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(1, "juan", "hola")))
	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(2, "juan", "quiero hablar con una persona")))

	require.NoError(t, f.service.HandleBotReply(ctx, "juan", "Entendido, te transfiero con un agente."))

	conv, err := f.store.GetConversation(ctx, "juan")
	require.NoError(t, err)
	assert.Equal(t, store.StatusWaiting, conv.Status)
	assert.True(t, conv.Escalated)

	item, ok := f.registry.Get("juan")
	require.True(t, ok)
	assert.Equal(t, "te transfiero con un agente", item.Metadata["escalation_reason"])

	// The transfer confirmation reached the user.
	texts := f.channel.sentTexts()
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[len(texts)-1], "Te transferimos")

	// The queue entry carries the full prior history plus the trigger reply.
	msgs := f.registry.Messages("juan")
	require.Len(t, msgs, 3)
	assert.Equal(t, store.SenderUser, msgs[0].Sender)
	assert.Equal(t, store.SenderUser, msgs[1].Sender)
	assert.Equal(t, store.SenderBot, msgs[2].Sender)

	// Re-running escalation does not duplicate the trigger message.
	require.NoError(t, f.service.HandleBotReply(ctx, "juan", "algo más"))
	require.NoError(t, f.service.HandleBotReply(ctx, "juan", "algo más"))
}

func TestUserMessageRoutedToQueueWhenEscalated(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(1, "juan", "hola")))
	require.NoError(t, f.service.HandleBotReply(ctx, "juan", "te transfiero con un agente"))

	botSends := len(f.bot.sent)
	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(2, "juan", "gracias, espero")))

	// The text went to the queue, not to the bot.
	assert.Len(t, f.bot.sent, botSends)
	msgs := f.registry.Messages("juan")
	assert.Equal(t, "gracias, espero", msgs[len(msgs)-1].Text)
}

func TestAgentMessageRequiresAssignment(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(1, "juan", "hola")))
	require.NoError(t, f.service.HandleBotReply(ctx, "juan", "te transfiero con un agente"))

	err := f.service.HandleAgentMessage(ctx, "juan", "a1", "buenas")
	assert.ErrorIs(t, err, ErrNotAssigned)

	require.True(t, f.registry.AssignAgent(ctx, "juan", "a1"))
	require.NoError(t, f.service.HandleAgentMessage(ctx, "juan", "a1", "buenas, dígame"))

	err = f.service.HandleAgentMessage(ctx, "juan", "a2", "hola")
	assert.ErrorIs(t, err, ErrNotAssigned)

	texts := f.channel.sentTexts()
	assert.Contains(t, texts[len(texts)-1], "buenas, dígame")
}

// Full hand-off round trip: bot, escalation, assignment, agent reply,
// completion, history intact.
func TestHandoffScenario(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(1, "juan", "hola")))
	require.NoError(t, f.service.HandleBotReply(ctx, "juan", "Buenos días"))
	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(2, "juan", "necesito ayuda de verdad")))
	require.NoError(t, f.service.HandleBotReply(ctx, "juan", "Claro, te transfiero con un agente"))

	require.True(t, f.registry.AssignAgent(ctx, "juan", "a1"))
	conv, err := f.store.GetConversation(ctx, "juan")
	require.NoError(t, err)
	assert.Equal(t, store.StatusAgent, conv.Status)

	found := false
	for _, m := range f.registry.Messages("juan") {
		if m.Sender == store.SenderSystem && m.Text == "Agente a1 se ha unido a la conversación" {
			found = true
		}
	}
	assert.True(t, found, "join system message missing")

	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(3, "juan", "sigo aquí")))
	require.NoError(t, f.service.HandleAgentMessage(ctx, "juan", "a1", "dígame, le ayudo"))

	require.True(t, f.registry.CompleteConversation(ctx, "juan"))
	_, ok := f.registry.Get("juan")
	assert.False(t, ok)

	// History spans both sides of the escalation.
	msgs, err := f.store.ListMessages(ctx, "juan")
	require.NoError(t, err)
	var texts []string
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	assert.Contains(t, texts, "hola")
	assert.Contains(t, texts, "Buenos días")
	assert.Contains(t, texts, "dígame, le ayudo")
}

func TestDuplicateUpdateDropped(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	cache := dedupe.New(time.Minute, 100)
	defer cache.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = New(Config{TransferMessage: "x"}, f.store, f.registry,
		escalation.NewDetector(nil), f.bot, f.channel, cache, logger)

	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(77, "juan", "hola")))
	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(77, "juan", "hola")))

	msgs, err := f.store.ListMessages(ctx, "juan")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestReopenCompletedConversation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(1, "juan", "hola")))
	conv, err := f.store.GetConversation(ctx, "juan")
	require.NoError(t, err)
	conv.Status = store.StatusCompleted
	require.NoError(t, f.store.UpdateConversation(ctx, conv))

	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(2, "juan", "hola otra vez")))

	conv, err = f.store.GetConversation(ctx, "juan")
	require.NoError(t, err)
	assert.Equal(t, store.StatusBot, conv.Status)
	assert.Equal(t, "sess-2", conv.BotSessionID)
}

func TestSweepInactive(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(1, "juan", "hola")))

	conv, err := f.store.GetConversation(ctx, "juan")
	require.NoError(t, err)
	conv.LastActivity = time.Now().Add(-48 * time.Hour)
	require.NoError(t, f.store.UpdateConversation(ctx, conv))

	assert.Equal(t, 1, f.service.SweepInactive(ctx))

	conv, err = f.store.GetConversation(ctx, "juan")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, conv.Status)

	// A second sweep finds nothing.
	assert.Equal(t, 0, f.service.SweepInactive(ctx))
}

func TestSweepCompletesQueuedConversationThroughRegistry(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.HandleUserMessage(ctx, userMsg(1, "juan", "hola")))
	require.NoError(t, f.service.HandleBotReply(ctx, "juan", "te transfiero con un agente"))

	conv, err := f.store.GetConversation(ctx, "juan")
	require.NoError(t, err)
	conv.LastActivity = time.Now().Add(-48 * time.Hour)
	require.NoError(t, f.store.UpdateConversation(ctx, conv))

	assert.Equal(t, 1, f.service.SweepInactive(ctx))

	_, ok := f.registry.Get("juan")
	assert.False(t, ok)
	_, err = f.store.GetQueueItem(ctx, "juan")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
