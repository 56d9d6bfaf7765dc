package core

import (
	"context"
	"fmt"
	"log"

	"github.com/jibzus/TLJ1/internal/store"
)

const assistantErrorReply = "I'm sorry, I encountered an error while processing your message. Please try again."

// ChatStore is what the chat service needs from the message store.
type ChatStore interface {
	GetUserByExternalID(ctx context.Context, externalUserID string) (*store.User, error)
	CreateUser(ctx context.Context, externalUserID, passwordHash string) (*store.User, error)
	GetTranscript(ctx context.Context, tempConversationID, userID string) ([]store.Message, error)
	CreateMessage(ctx context.Context, msg *store.Message) error
	ListConversationPreviews(ctx context.Context, userID string) ([]store.ConversationPreview, error)
	ListSummaries(ctx context.Context, userID string) ([]store.ConversationSummary, error)
}

// ChatCompleter generates the assistant's next turn.
type ChatCompleter interface {
	ChatReply(ctx context.Context, history []store.Message, userMessage string) (string, error)
}

type ChatService struct {
	dbStore    ChatStore
	llmService ChatCompleter
}

func NewChatService(db ChatStore, llm ChatCompleter) *ChatService {
	return &ChatService{
		dbStore:    db,
		llmService: llm,
	}
}

func (s *ChatService) GetUserByExternalID(ctx context.Context, externalUserID string) (*store.User, error) {
	return s.dbStore.GetUserByExternalID(ctx, externalUserID)
}

func (s *ChatService) CreateUser(ctx context.Context, externalUserID, passwordHash string) (*store.User, error) {
	return s.dbStore.CreateUser(ctx, externalUserID, passwordHash)
}

// SendMessage appends the user's turn under the temp conversation id,
// generates the assistant's reply from the transcript so far, appends it,
// and returns both stored rows.
func (s *ChatService) SendMessage(ctx context.Context, userID, tempConversationID, content string) (*store.Message, *store.Message, error) {
	history, err := s.dbStore.GetTranscript(ctx, tempConversationID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	userMsg := store.Message{
		UserID:             userID,
		Sender:             store.SenderUser,
		Text:               content,
		TempConversationID: &tempConversationID,
	}
	if err := s.dbStore.CreateMessage(ctx, &userMsg); err != nil {
		return nil, nil, fmt.Errorf("failed to store user message: %w", err)
	}

	replyContent, err := s.llmService.ChatReply(ctx, history, content)
	if err != nil {
		// The user's turn is already stored; answer with a canned reply so
		// the conversation (and a later finalization) can still proceed.
		log.Printf("Error generating assistant reply for conversation %s: %v", tempConversationID, err)
		replyContent = assistantErrorReply
	}

	assistantMsg := store.Message{
		UserID:             userID,
		Sender:             store.SenderAssistant,
		Text:               replyContent,
		TempConversationID: &tempConversationID,
	}
	if err := s.dbStore.CreateMessage(ctx, &assistantMsg); err != nil {
		return nil, nil, fmt.Errorf("failed to store assistant message: %w", err)
	}

	return &userMsg, &assistantMsg, nil
}

// GetTranscript returns the in-progress transcript for a conversation the
// user owns. The store query itself scopes to the user, so messages other
// users wrote under the same id never appear.
func (s *ChatService) GetTranscript(ctx context.Context, userID, tempConversationID string) ([]store.Message, error) {
	messages, err := s.dbStore.GetTranscript(ctx, tempConversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	return messages, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]store.ConversationPreview, error) {
	return s.dbStore.ListConversationPreviews(ctx, userID)
}

func (s *ChatService) ListSummaries(ctx context.Context, userID string) ([]store.ConversationSummary, error) {
	return s.dbStore.ListSummaries(ctx, userID)
}
