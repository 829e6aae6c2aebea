// ABOUTME: HTTP client for the bot platform's session API
// ABOUTME: Tokens are cached per session and refreshed when their TTL lapses

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// BotClient talks to the bot platform over its JSON HTTP API. Session tokens
// are cached in memory and re-fetched once they approach expiry.
type BotClient struct {
	baseURL  string
	apiKey   string
	tokenTTL time.Duration
	client   *http.Client
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session // conversationID -> session
}

// NewBotClient creates a client for the bot platform at baseURL.
func NewBotClient(baseURL, apiKey string, tokenTTL time.Duration, logger *slog.Logger) *BotClient {
	if tokenTTL <= 0 {
		tokenTTL = 55 * time.Minute
	}
	return &BotClient{
		baseURL:  baseURL,
		apiKey:   apiKey,
		tokenTTL: tokenTTL,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "bot_client"),
		sessions: make(map[string]*Session),
	}
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

// CreateSession opens a new bot session for the given user identity and
// binds it under that identity, which doubles as the conversation id.
func (c *BotClient) CreateSession(ctx context.Context, userID string) (*Session, error) {
	var resp createSessionResponse
	if err := c.post(ctx, "/v1/sessions", createSessionRequest{UserID: userID}, &resp); err != nil {
		return nil, fmt.Errorf("creating bot session: %w", err)
	}
	sess := &Session{ID: resp.SessionID, Token: resp.Token, FetchedAt: time.Now()}
	c.BindSession(userID, sess)
	return sess, nil
}

// BindSession associates an existing session with a conversation so later
// SendToBot calls reuse its token. Used when rehydrating from storage.
func (c *BotClient) BindSession(conversationID string, sess *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[conversationID] = sess
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// SendToBot forwards user text into the conversation's bot session,
// refreshing the session token first if it has outlived its TTL.
func (c *BotClient) SendToBot(ctx context.Context, conversationID, text string) error {
	sess, err := c.session(ctx, conversationID)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/v1/sessions/%s/messages", sess.ID)
	if err := c.postWithToken(ctx, path, sess.Token, sendMessageRequest{Text: text}, nil); err != nil {
		return fmt.Errorf("sending to bot session %s: %w", sess.ID, err)
	}
	return nil
}

// ResumeBot tells the platform the bot is back in charge of the conversation.
func (c *BotClient) ResumeBot(ctx context.Context, conversationID string) error {
	sess, err := c.session(ctx, conversationID)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/v1/sessions/%s/resume", sess.ID)
	if err := c.postWithToken(ctx, path, sess.Token, struct{}{}, nil); err != nil {
		return fmt.Errorf("resuming bot session %s: %w", sess.ID, err)
	}
	return nil
}

func (c *BotClient) session(ctx context.Context, conversationID string) (*Session, error) {
	c.mu.Lock()
	sess, ok := c.sessions[conversationID]
	c.mu.Unlock()
	if !ok {
		// Bindings live in memory, so a restart loses them. A fresh session
		// costs the bot its context but keeps the conversation moving.
		c.logger.Warn("no session bound, opening a fresh one", "conversation_id", conversationID)
		return c.CreateSession(ctx, conversationID)
	}
	if time.Since(sess.FetchedAt) < c.tokenTTL {
		return sess, nil
	}

	c.logger.Debug("refreshing bot session token", "session_id", sess.ID)
	var resp createSessionResponse
	path := fmt.Sprintf("/v1/sessions/%s/token", sess.ID)
	if err := c.post(ctx, path, struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("refreshing token for session %s: %w", sess.ID, err)
	}
	fresh := &Session{ID: sess.ID, Token: resp.Token, FetchedAt: time.Now()}
	c.mu.Lock()
	c.sessions[conversationID] = fresh
	c.mu.Unlock()
	return fresh, nil
}

func (c *BotClient) post(ctx context.Context, path string, body, out any) error {
	return c.doPost(ctx, path, c.apiKey, body, out)
}

func (c *BotClient) postWithToken(ctx context.Context, path, token string, body, out any) error {
	return c.doPost(ctx, path, token, body, out)
}

func (c *BotClient) doPost(ctx context.Context, path, bearer string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bot platform returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
