package core

import (
	"context"
	"errors"

	"github.com/jibzus/TLJ1/internal/store"
)

var ErrMemoryInvalid = errors.New("memory title and content are required")

type MemoryService struct {
	dbStore *store.PostgresStore
}

func NewMemoryService(db *store.PostgresStore) *MemoryService {
	return &MemoryService{dbStore: db}
}

// MemoryInput carries caller-supplied fields for a new memory. The
// conversation id, when set, points at a finalized conversation summary;
// the memory stays editable and deletable after that conversation is gone
// from the user's mind entirely.
type MemoryInput struct {
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	ConversationID *string `json:"conversation_id,omitempty"`
	ImageURL       *string `json:"image_url,omitempty"`
}

func (s *MemoryService) Create(ctx context.Context, userID string, input MemoryInput) (*store.Memory, error) {
	if input.Title == "" || input.Content == "" {
		return nil, ErrMemoryInvalid
	}

	memory := store.Memory{
		UserID:         userID,
		ConversationID: input.ConversationID,
		Title:          input.Title,
		Content:        input.Content,
		ImageURL:       input.ImageURL,
	}
	if err := s.dbStore.CreateMemory(ctx, &memory); err != nil {
		return nil, err
	}
	return &memory, nil
}

func (s *MemoryService) Get(ctx context.Context, memoryID, userID string) (*store.Memory, error) {
	return s.dbStore.GetMemoryByID(ctx, memoryID, userID)
}

func (s *MemoryService) List(ctx context.Context, userID string) ([]store.Memory, error) {
	return s.dbStore.ListMemoriesByUser(ctx, userID)
}

func (s *MemoryService) Update(ctx context.Context, memoryID, userID, title, content string) (*store.Memory, error) {
	if title == "" || content == "" {
		return nil, ErrMemoryInvalid
	}
	if err := s.dbStore.UpdateMemory(ctx, memoryID, userID, title, content); err != nil {
		return nil, err
	}
	return s.dbStore.GetMemoryByID(ctx, memoryID, userID)
}

func (s *MemoryService) Delete(ctx context.Context, memoryID, userID string) error {
	return s.dbStore.DeleteMemory(ctx, memoryID, userID)
}
