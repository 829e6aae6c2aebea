// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message/queue/agent persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id                   TEXT PRIMARY KEY,
			channel_id           TEXT NOT NULL,
			bot_session_id       TEXT,
			bot_token            TEXT,
			bot_token_fetched_at DATETIME,
			escalated            INTEGER NOT NULL DEFAULT 0,
			status               TEXT NOT NULL,
			last_activity        DATETIME NOT NULL,
			created_at           DATETIME NOT NULL,

			CHECK (status IN ('bot', 'waiting', 'agent', 'completed'))
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_status
			ON conversations(status);
		CREATE INDEX IF NOT EXISTS idx_conversations_last_activity
			ON conversations(last_activity);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender          TEXT NOT NULL,
			agent_id        TEXT,
			text            TEXT NOT NULL,
			attachment_url  TEXT,
			metadata_json   TEXT,
			timestamp       DATETIME NOT NULL,

			CHECK (sender IN ('user', 'bot', 'agent', 'system'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, timestamp);

		CREATE TABLE IF NOT EXISTS queue_items (
			conversation_id TEXT PRIMARY KEY,
			channel_id      TEXT NOT NULL,
			start_time      DATETIME NOT NULL,
			priority        INTEGER NOT NULL DEFAULT 1,
			tags_json       TEXT,
			assigned_agent  TEXT,
			metadata_json   TEXT,

			CHECK (priority BETWEEN 1 AND 5)
		);

		CREATE INDEX IF NOT EXISTS idx_queue_items_assigned
			ON queue_items(assigned_agent);

		CREATE TABLE IF NOT EXISTS agents (
			id                   TEXT PRIMARY KEY,
			name                 TEXT NOT NULL,
			status               TEXT NOT NULL,
			role                 TEXT,
			active_json          TEXT,
			max_concurrent_chats INTEGER NOT NULL DEFAULT 3,
			last_activity        DATETIME NOT NULL,

			CHECK (status IN ('offline', 'online', 'busy', 'away'))
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateConversation inserts a new conversation row.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations
			(id, channel_id, bot_session_id, bot_token, bot_token_fetched_at, escalated, status, last_activity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.ChannelID, conv.BotSessionID, conv.BotToken,
		conv.BotTokenFetchedAt, boolToInt(conv.Escalated), string(conv.Status),
		conv.LastActivity, conv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// GetConversation returns the conversation with the given id, or ErrNotFound.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, channel_id, bot_session_id, bot_token, bot_token_fetched_at, escalated, status, last_activity, created_at
		FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// UpdateConversation rewrites all mutable fields of a conversation row.
func (s *SQLiteStore) UpdateConversation(ctx context.Context, conv *Conversation) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET channel_id = ?, bot_session_id = ?, bot_token = ?, bot_token_fetched_at = ?,
			escalated = ?, status = ?, last_activity = ?
		WHERE id = ?`,
		conv.ChannelID, conv.BotSessionID, conv.BotToken, conv.BotTokenFetchedAt,
		boolToInt(conv.Escalated), string(conv.Status), conv.LastActivity, conv.ID,
	)
	if err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListConversationsIdleSince returns non-completed conversations whose last
// activity is at or before the cutoff. Used by the inactivity sweep.
func (s *SQLiteStore) ListConversationsIdleSince(ctx context.Context, cutoff time.Time) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel_id, bot_session_id, bot_token, bot_token_fetched_at, escalated, status, last_activity, created_at
		FROM conversations
		WHERE status != 'completed' AND last_activity <= ?
		ORDER BY last_activity ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing idle conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// AppendMessage inserts a message row. Messages are append-only; there is no
// update or delete path.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	metadata, err := encodeJSONMap(msg.Metadata)
	if err != nil {
		return fmt.Errorf("encoding message metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender, agent_id, text, attachment_url, metadata_json, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Sender), msg.AgentID,
		msg.Text, msg.AttachmentURL, metadata, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// ListMessages returns all messages of a conversation ordered by ascending
// timestamp. History is permanent, including after completion.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender, agent_id, text, attachment_url, metadata_json, timestamp
		FROM messages
		WHERE conversation_id = ?
		ORDER BY timestamp ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		var msg Message
		var sender string
		var agentID, attachment, metadata sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &sender, &agentID,
			&msg.Text, &attachment, &metadata, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Sender = Sender(sender)
		msg.AgentID = agentID.String
		msg.AttachmentURL = attachment.String
		if msg.Metadata, err = decodeJSONMap(metadata.String); err != nil {
			return nil, fmt.Errorf("decoding message metadata: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// UpsertQueueItem inserts or replaces the queue row for a conversation.
func (s *SQLiteStore) UpsertQueueItem(ctx context.Context, item *QueueItem) error {
	tags, err := encodeJSONSlice(item.Tags)
	if err != nil {
		return fmt.Errorf("encoding queue tags: %w", err)
	}
	metadata, err := encodeJSONMap(item.Metadata)
	if err != nil {
		return fmt.Errorf("encoding queue metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO queue_items (conversation_id, channel_id, start_time, priority, tags_json, assigned_agent, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			start_time = excluded.start_time,
			priority = excluded.priority,
			tags_json = excluded.tags_json,
			assigned_agent = excluded.assigned_agent,
			metadata_json = excluded.metadata_json`,
		item.ConversationID, item.ChannelID, item.StartTime, item.Priority,
		tags, item.AssignedAgent, metadata,
	)
	if err != nil {
		return fmt.Errorf("upserting queue item: %w", err)
	}
	return nil
}

// GetQueueItem returns the queue row for a conversation, or ErrNotFound.
func (s *SQLiteStore) GetQueueItem(ctx context.Context, conversationID string) (*QueueItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, channel_id, start_time, priority, tags_json, assigned_agent, metadata_json
		FROM queue_items WHERE conversation_id = ?`, conversationID)
	item, err := scanQueueItem(row)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListQueueItems returns all queue rows ordered by start time.
func (s *SQLiteStore) ListQueueItems(ctx context.Context) ([]*QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, channel_id, start_time, priority, tags_json, assigned_agent, metadata_json
		FROM queue_items ORDER BY start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing queue items: %w", err)
	}
	defer rows.Close()

	var items []*QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteQueueItem removes the queue row for a conversation. Deleting a row
// that does not exist is not an error; completion must be idempotent.
func (s *SQLiteStore) DeleteQueueItem(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("deleting queue item: %w", err)
	}
	return nil
}

// SaveAgent inserts or replaces an agent directory row.
func (s *SQLiteStore) SaveAgent(ctx context.Context, agent *Agent) error {
	active, err := encodeJSONSlice(agent.ActiveConversations)
	if err != nil {
		return fmt.Errorf("encoding agent active set: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, status, role, active_json, max_concurrent_chats, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			role = excluded.role,
			active_json = excluded.active_json,
			max_concurrent_chats = excluded.max_concurrent_chats,
			last_activity = excluded.last_activity`,
		agent.ID, agent.Name, string(agent.Status), agent.Role, active,
		agent.MaxConcurrentChats, agent.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("saving agent: %w", err)
	}
	return nil
}

// GetAgent returns the agent with the given id, or ErrNotFound.
func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, role, active_json, max_concurrent_chats, last_activity
		FROM agents WHERE id = ?`, id)
	return scanAgent(row)
}

// ListAgents returns all agent rows.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status, role, active_json, max_concurrent_chats, last_activity
		FROM agents ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(sc scanner) (*Conversation, error) {
	var conv Conversation
	var status string
	var escalated int
	var sessionID, token sql.NullString
	var fetchedAt sql.NullTime
	err := sc.Scan(&conv.ID, &conv.ChannelID, &sessionID, &token, &fetchedAt,
		&escalated, &status, &conv.LastActivity, &conv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	conv.BotSessionID = sessionID.String
	conv.BotToken = token.String
	conv.BotTokenFetchedAt = fetchedAt.Time
	conv.Escalated = escalated != 0
	conv.Status = ConversationStatus(status)
	return &conv, nil
}

func scanQueueItem(sc scanner) (*QueueItem, error) {
	var item QueueItem
	var tags, assigned, metadata sql.NullString
	err := sc.Scan(&item.ConversationID, &item.ChannelID, &item.StartTime,
		&item.Priority, &tags, &assigned, &metadata)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning queue item: %w", err)
	}
	item.AssignedAgent = assigned.String
	var decodeErr error
	if item.Tags, decodeErr = decodeJSONSlice(tags.String); decodeErr != nil {
		return nil, fmt.Errorf("decoding queue tags: %w", decodeErr)
	}
	if item.Metadata, decodeErr = decodeJSONMap(metadata.String); decodeErr != nil {
		return nil, fmt.Errorf("decoding queue metadata: %w", decodeErr)
	}
	return &item, nil
}

func scanAgent(sc scanner) (*Agent, error) {
	var agent Agent
	var status string
	var role, active sql.NullString
	err := sc.Scan(&agent.ID, &agent.Name, &status, &role, &active,
		&agent.MaxConcurrentChats, &agent.LastActivity)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning agent: %w", err)
	}
	agent.Status = AgentStatus(status)
	agent.Role = role.String
	var decodeErr error
	if agent.ActiveConversations, decodeErr = decodeJSONSlice(active.String); decodeErr != nil {
		return nil, fmt.Errorf("decoding agent active set: %w", decodeErr)
	}
	return &agent, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeJSONMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSONMap(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeJSONSlice(v []string) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSONSlice(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}
