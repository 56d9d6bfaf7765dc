package core

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jibzus/TLJ1/internal/store"
)

// TranscriptStore is what the finalizer needs from the message store: the
// ordered transcript read and the atomic end-of-conversation write. Both
// operations scope to the owning user.
type TranscriptStore interface {
	GetTranscript(ctx context.Context, tempConversationID, userID string) ([]store.Message, error)
	EndConversation(ctx context.Context, tempConversationID, conversationID, userID, summary string, startTime, endTime time.Time) error
}

// Summarizer turns a rendered prompt into a trimmed, non-empty summary.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// FinalizeResult is what the caller needs to build a Memory from a closed
// conversation.
type FinalizeResult struct {
	Summary        string `json:"summary"`
	ConversationID string `json:"conversationId"`
}

// FinalizerService closes an in-progress conversation: it fetches the
// transcript, summarizes it as a first-person journal entry, and promotes
// the temp conversation id to a permanent one in a single transaction.
//
// Each attempt is at most once. Nothing is written before the persist
// step, and the persist step is atomic, so a failed attempt leaves the
// conversation exactly as it was and is safe to retry from the caller.
type FinalizerService struct {
	transcripts TranscriptStore
	summarizer  Summarizer
	now         func() time.Time
}

func NewFinalizerService(transcripts TranscriptStore, summarizer Summarizer) *FinalizerService {
	return &FinalizerService{
		transcripts: transcripts,
		summarizer:  summarizer,
		now:         time.Now,
	}
}

func (s *FinalizerService) Finalize(ctx context.Context, tempConversationID, userID string) (*FinalizeResult, error) {
	// The permanent id is chosen before any side effect so the summary row
	// and the message re-key can share it atomically later. A discarded id
	// from a failed attempt is never reused.
	conversationID := uuid.NewString()

	transcript, err := s.transcripts.GetTranscript(ctx, tempConversationID, userID)
	if err != nil {
		return nil, s.fail(StageFetchTranscript, tempConversationID, err)
	}
	if len(transcript) == 0 {
		// Also the outcome of finalizing the same conversation twice: the
		// first attempt re-keyed every message away from the temp id.
		return nil, s.fail(StageFetchTranscript, tempConversationID, ErrEmptyConversation)
	}

	prompt := BuildSummaryPrompt(transcript)
	summary, err := s.summarizer.Summarize(ctx, prompt)
	if err != nil {
		return nil, s.fail(StageSummarize, tempConversationID, err)
	}

	startTime := transcript[0].Timestamp
	endTime := s.now()
	if err := s.transcripts.EndConversation(ctx, tempConversationID, conversationID, userID, summary, startTime, endTime); err != nil {
		return nil, s.fail(StagePersist, tempConversationID, err)
	}

	return &FinalizeResult{Summary: summary, ConversationID: conversationID}, nil
}

func (s *FinalizerService) fail(stage Stage, tempConversationID string, err error) error {
	ferr := &FinalizeError{Stage: stage, TempConversationID: tempConversationID, Err: err}
	log.Printf("Finalization failed: %v", ferr)
	return ferr
}
