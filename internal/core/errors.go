package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyConversation means no messages exist under the temp
	// conversation id. Retrying without new messages will fail the same way.
	ErrEmptyConversation = errors.New("no messages found for the conversation")

	// ErrEmptyResponse means the text-generation API returned no choices or
	// candidates at all.
	ErrEmptyResponse = errors.New("empty response from text-generation API")

	// ErrBlankSummary means the API responded, but the concatenated text was
	// empty after trimming.
	ErrBlankSummary = errors.New("generated summary is blank")
)

// Stage identifies where a finalization attempt failed.
type Stage string

const (
	StageFetchTranscript Stage = "fetch_transcript"
	StageSummarize       Stage = "summarize"
	StagePersist         Stage = "persist"
)

// FinalizeError wraps the failing stage's error with enough context to
// identify the conversation. Nothing has been persisted unless the stage is
// StagePersist, and that stage is all-or-nothing, so a FinalizeError never
// implies partial state.
type FinalizeError struct {
	Stage              Stage
	TempConversationID string
	Err                error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("finalize conversation %s failed at %s: %v", e.TempConversationID, e.Stage, e.Err)
}

func (e *FinalizeError) Unwrap() error {
	return e.Err
}
