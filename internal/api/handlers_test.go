package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jibzus/TLJ1/internal/core"
)

type fakeFinalizer struct {
	result *core.FinalizeResult
	err    error

	gotTempConversationID string
	gotUserID             string
	calls                 int
}

func (f *fakeFinalizer) Finalize(_ context.Context, tempConversationID, userID string) (*core.FinalizeResult, error) {
	f.calls++
	f.gotTempConversationID = tempConversationID
	f.gotUserID = userID
	return f.result, f.err
}

func generateSummaryRequest(t *testing.T, body, authedUserID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/generate-summary", strings.NewReader(body))
	ctx := context.WithValue(req.Context(), "userID", authedUserID)
	return req.WithContext(ctx)
}

func TestGenerateSummaryMissingParameters(t *testing.T) {
	cases := map[string]string{
		"empty body":      `{}`,
		"missing user":    `{"tempConversationId":"temp-1"}`,
		"missing temp id": `{"userId":"user-1"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			finalizer := &fakeFinalizer{}
			handler := NewAPIHandler("secret", nil, nil, finalizer)

			rec := httptest.NewRecorder()
			handler.GenerateSummaryHandler(rec, generateSummaryRequest(t, body, "user-1"))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "Missing required parameters")
			assert.Zero(t, finalizer.calls)
		})
	}
}

func TestGenerateSummaryRejectsOtherUsers(t *testing.T) {
	finalizer := &fakeFinalizer{}
	handler := NewAPIHandler("secret", nil, nil, finalizer)

	rec := httptest.NewRecorder()
	body := `{"tempConversationId":"temp-1","userId":"someone-else"}`
	handler.GenerateSummaryHandler(rec, generateSummaryRequest(t, body, "user-1"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, finalizer.calls)
}

func TestGenerateSummarySuccess(t *testing.T) {
	finalizer := &fakeFinalizer{
		result: &core.FinalizeResult{
			Summary:        "Today was a long day at work.",
			ConversationID: "b2f1d0be-9c14-4a95-9e6e-1f7703bb3de2",
		},
	}
	handler := NewAPIHandler("secret", nil, nil, finalizer)

	rec := httptest.NewRecorder()
	body := `{"tempConversationId":"temp-1","userId":"user-1"}`
	handler.GenerateSummaryHandler(rec, generateSummaryRequest(t, body, "user-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "temp-1", finalizer.gotTempConversationID)
	assert.Equal(t, "user-1", finalizer.gotUserID)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, finalizer.result.Summary, resp["summary"])
	assert.Equal(t, finalizer.result.ConversationID, resp["conversationId"])
}

func TestGenerateSummaryFailureIsGeneric(t *testing.T) {
	cases := map[string]error{
		"empty conversation": &core.FinalizeError{
			Stage:              core.StageFetchTranscript,
			TempConversationID: "temp-1",
			Err:                core.ErrEmptyConversation,
		},
		"blank summary": &core.FinalizeError{
			Stage:              core.StageSummarize,
			TempConversationID: "temp-1",
			Err:                core.ErrBlankSummary,
		},
		"persistence failure": errors.New("transaction aborted"),
	}

	for name, ferr := range cases {
		t.Run(name, func(t *testing.T) {
			handler := NewAPIHandler("secret", nil, nil, &fakeFinalizer{err: ferr})

			rec := httptest.NewRecorder()
			body := `{"tempConversationId":"temp-1","userId":"user-1"}`
			handler.GenerateSummaryHandler(rec, generateSummaryRequest(t, body, "user-1"))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			// No internal detail leaks to the client.
			assert.Contains(t, rec.Body.String(), "Failed to generate or save summary")
			assert.NotContains(t, rec.Body.String(), "temp-1")
		})
	}
}
