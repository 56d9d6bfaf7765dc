package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ErrNotFound is returned by mutations whose target row does not exist or
// is not owned by the given user. Reads report the same condition as a nil
// result instead.
var ErrNotFound = errors.New("record not found")

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(dataSourceName string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id UUID PRIMARY KEY,
        external_user_id TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );

    CREATE TABLE IF NOT EXISTS conversation_summaries (
        conversation_id UUID PRIMARY KEY,
        user_id UUID NOT NULL REFERENCES users (id),
        start_time TIMESTAMPTZ NOT NULL,
        end_time TIMESTAMPTZ NOT NULL,
        summary TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS messages (
        message_id UUID PRIMARY KEY,
        user_id UUID NOT NULL REFERENCES users (id),
        sender TEXT NOT NULL CHECK (sender IN ('user', 'assistant', 'system')),
        message_text TEXT NOT NULL,
        timestamp TIMESTAMPTZ NOT NULL,
        temp_conversation_id UUID,
        conversation_id UUID REFERENCES conversation_summaries (conversation_id)
    );

    CREATE INDEX IF NOT EXISTS idx_messages_temp_conversation
        ON messages (temp_conversation_id, timestamp);

    CREATE TABLE IF NOT EXISTS memories (
        id UUID PRIMARY KEY,
        user_id UUID NOT NULL REFERENCES users (id),
        conversation_id UUID REFERENCES conversation_summaries (conversation_id),
        title TEXT NOT NULL,
        content TEXT NOT NULL,
        image_url TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    `
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// The finalize step is a single server-side call so the summary insert
	// and the message re-key cannot partially commit.
	endConversationFn := `
    CREATE OR REPLACE FUNCTION end_conversation(
        p_temp_conversation_id UUID,
        p_conversation_id UUID,
        p_user_id UUID,
        p_summary TEXT,
        p_start_time TIMESTAMPTZ,
        p_end_time TIMESTAMPTZ
    ) RETURNS VOID AS $$
    BEGIN
        INSERT INTO conversation_summaries (conversation_id, user_id, start_time, end_time, summary)
        VALUES (p_conversation_id, p_user_id, p_start_time, p_end_time, p_summary);

        UPDATE messages
        SET conversation_id = p_conversation_id,
            temp_conversation_id = NULL
        WHERE temp_conversation_id = p_temp_conversation_id
          AND user_id = p_user_id;
    END;
    $$ LANGUAGE plpgsql;
    `
	_, err := s.db.Exec(endConversationFn)
	return err
}

// User methods

func (s *PostgresStore) GetUserByExternalID(ctx context.Context, externalUserID string) (*User, error) {
	query, args, err := psql.Select("id", "external_user_id", "password_hash", "created_at").
		From("users").Where(sq.Eq{"external_user_id": externalUserID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	var user User
	if err := s.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, externalUserID, passwordHash string) (*User, error) {
	user := User{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		PasswordHash:   passwordHash,
		CreatedAt:      time.Now(),
	}

	query, args, err := psql.Insert("users").
		Columns("id", "external_user_id", "password_hash", "created_at").
		Values(user.ID, user.ExternalUserID, user.PasswordHash, user.CreatedAt).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &user, nil
}

// Message methods

// CreateMessage appends one immutable chat turn. The id and timestamp are
// assigned here; callers only supply content and routing fields.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *Message) error {
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now()

	query, args, err := psql.Insert("messages").
		Columns("message_id", "user_id", "sender", "message_text", "timestamp", "temp_conversation_id", "conversation_id").
		Values(msg.ID, msg.UserID, msg.Sender, msg.Text, msg.Timestamp, msg.TempConversationID, msg.ConversationID).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build message insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute message insert: %w", err)
	}
	return nil
}

// GetTranscript returns the user's messages still keyed by the given temp
// conversation id, ascending by timestamp. A finalized or unknown id
// yields an empty result, not an error. The user filter matches the
// re-key predicate of end_conversation, so a finalized summary can never
// cover rows the procedure would leave behind.
func (s *PostgresStore) GetTranscript(ctx context.Context, tempConversationID, userID string) ([]Message, error) {
	query, args, err := psql.Select("message_id", "user_id", "sender", "message_text", "timestamp", "temp_conversation_id", "conversation_id").
		From("messages").
		Where(sq.Eq{"temp_conversation_id": tempConversationID, "user_id": userID}).
		OrderBy("timestamp ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build transcript query: %w", err)
	}

	var messages []Message
	if err := s.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	return messages, nil
}

// EndConversation invokes the end_conversation stored procedure, which
// inserts the summary row and re-keys the transcript in one transaction.
func (s *PostgresStore) EndConversation(ctx context.Context, tempConversationID, conversationID, userID, summary string, startTime, endTime time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"SELECT end_conversation($1, $2, $3, $4, $5, $6)",
		tempConversationID, conversationID, userID, summary, startTime, endTime)
	if err != nil {
		return fmt.Errorf("end_conversation transaction failed: %w", err)
	}
	return nil
}

// ListConversationPreviews returns one row per in-progress conversation
// (messages not yet re-keyed), newest first.
func (s *PostgresStore) ListConversationPreviews(ctx context.Context, userID string) ([]ConversationPreview, error) {
	query := `
        SELECT temp_conversation_id, last_message, timestamp FROM (
            SELECT DISTINCT ON (temp_conversation_id)
                temp_conversation_id, message_text AS last_message, timestamp
            FROM messages
            WHERE user_id = $1 AND temp_conversation_id IS NOT NULL
            ORDER BY temp_conversation_id, timestamp DESC
        ) latest
        ORDER BY timestamp DESC
    `
	var previews []ConversationPreview
	if err := s.db.SelectContext(ctx, &previews, query, userID); err != nil {
		return nil, fmt.Errorf("failed to query conversation previews: %w", err)
	}
	return previews, nil
}

func (s *PostgresStore) ListSummaries(ctx context.Context, userID string) ([]ConversationSummary, error) {
	query, args, err := psql.Select("conversation_id", "user_id", "start_time", "end_time", "summary").
		From("conversation_summaries").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("end_time DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build summaries query: %w", err)
	}

	var summaries []ConversationSummary
	if err := s.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	return summaries, nil
}

// Memory methods

func (s *PostgresStore) CreateMemory(ctx context.Context, memory *Memory) error {
	memory.ID = uuid.NewString()
	now := time.Now()
	memory.CreatedAt = now
	memory.UpdatedAt = now

	query, args, err := psql.Insert("memories").
		Columns("id", "user_id", "conversation_id", "title", "content", "image_url", "created_at", "updated_at").
		Values(memory.ID, memory.UserID, memory.ConversationID, memory.Title, memory.Content, memory.ImageURL, memory.CreatedAt, memory.UpdatedAt).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build memory insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to execute memory insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMemoryByID(ctx context.Context, memoryID, userID string) (*Memory, error) {
	query, args, err := psql.Select("id", "user_id", "conversation_id", "title", "content", "image_url", "created_at", "updated_at").
		From("memories").Where(sq.Eq{"id": memoryID, "user_id": userID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build memory query: %w", err)
	}

	var memory Memory
	if err := s.db.GetContext(ctx, &memory, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to query memory: %w", err)
	}
	return &memory, nil
}

func (s *PostgresStore) ListMemoriesByUser(ctx context.Context, userID string) ([]Memory, error) {
	query, args, err := psql.Select("id", "user_id", "conversation_id", "title", "content", "image_url", "created_at", "updated_at").
		From("memories").Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build memories query: %w", err)
	}

	var memories []Memory
	if err := s.db.SelectContext(ctx, &memories, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	return memories, nil
}

func (s *PostgresStore) UpdateMemory(ctx context.Context, memoryID, userID, title, content string) error {
	query, args, err := psql.Update("memories").
		Set("title", title).
		Set("content", content).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": memoryID, "user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build memory update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute memory update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteMemory(ctx context.Context, memoryID, userID string) error {
	query, args, err := psql.Delete("memories").
		Where(sq.Eq{"id": memoryID, "user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build memory delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute memory delete: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
