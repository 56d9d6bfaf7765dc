package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jibzus/TLJ1/internal/store"
)

// fakeChatStore keeps appended messages in memory and scopes reads by
// temp conversation id and user, like the real store query does.
type fakeChatStore struct {
	messages  []store.Message
	createErr error
}

func (f *fakeChatStore) GetUserByExternalID(_ context.Context, _ string) (*store.User, error) {
	return nil, nil
}

func (f *fakeChatStore) CreateUser(_ context.Context, _, _ string) (*store.User, error) {
	return nil, nil
}

func (f *fakeChatStore) GetTranscript(_ context.Context, tempConversationID, userID string) ([]store.Message, error) {
	var owned []store.Message
	for _, m := range f.messages {
		if m.TempConversationID != nil && *m.TempConversationID == tempConversationID && m.UserID == userID {
			owned = append(owned, m)
		}
	}
	return owned, nil
}

func (f *fakeChatStore) CreateMessage(_ context.Context, msg *store.Message) error {
	if f.createErr != nil {
		return f.createErr
	}
	msg.ID = "msg-" + msg.Sender
	msg.Timestamp = time.Now()
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeChatStore) ListConversationPreviews(_ context.Context, _ string) ([]store.ConversationPreview, error) {
	return nil, nil
}

func (f *fakeChatStore) ListSummaries(_ context.Context, _ string) ([]store.ConversationSummary, error) {
	return nil, nil
}

type fakeReplier struct {
	reply string
	err   error

	gotHistory []store.Message
	gotMessage string
}

func (f *fakeReplier) ChatReply(_ context.Context, history []store.Message, userMessage string) (string, error) {
	f.gotHistory = history
	f.gotMessage = userMessage
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestSendMessageStoresBothTurns(t *testing.T) {
	tempID := "temp-1"
	dbStore := &fakeChatStore{}
	replier := &fakeReplier{reply: "Why was your day long?"}

	svc := NewChatService(dbStore, replier)
	userMsg, assistantMsg, err := svc.SendMessage(context.Background(), "user-1", tempID, "Long day at work")
	require.NoError(t, err)

	assert.Equal(t, store.SenderUser, userMsg.Sender)
	assert.Equal(t, "Long day at work", userMsg.Text)
	assert.Equal(t, store.SenderAssistant, assistantMsg.Sender)
	assert.Equal(t, "Why was your day long?", assistantMsg.Text)

	require.Len(t, dbStore.messages, 2)
	for _, m := range dbStore.messages {
		require.NotNil(t, m.TempConversationID)
		assert.Equal(t, tempID, *m.TempConversationID)
		assert.Equal(t, "user-1", m.UserID)
	}

	// The model sees the incoming message once, as the new turn, not as
	// part of the history.
	assert.Empty(t, replier.gotHistory)
	assert.Equal(t, "Long day at work", replier.gotMessage)
}

func TestSendMessagePassesPriorTurnsAsHistory(t *testing.T) {
	tempID := "temp-1"
	dbStore := &fakeChatStore{}
	replier := &fakeReplier{reply: "first reply"}
	svc := NewChatService(dbStore, replier)

	_, _, err := svc.SendMessage(context.Background(), "user-1", tempID, "I'm tired today")
	require.NoError(t, err)

	_, _, err = svc.SendMessage(context.Background(), "user-1", tempID, "Long day at work")
	require.NoError(t, err)

	require.Len(t, replier.gotHistory, 2)
	assert.Equal(t, "I'm tired today", replier.gotHistory[0].Text)
	assert.Equal(t, "first reply", replier.gotHistory[1].Text)
	assert.Equal(t, "Long day at work", replier.gotMessage)
}

func TestSendMessageCannedReplyOnModelFailure(t *testing.T) {
	tempID := "temp-1"
	dbStore := &fakeChatStore{}
	replier := &fakeReplier{err: errors.New("model unavailable")}

	svc := NewChatService(dbStore, replier)
	userMsg, assistantMsg, err := svc.SendMessage(context.Background(), "user-1", tempID, "Long day at work")
	require.NoError(t, err, "a model failure must not fail the request")

	assert.Equal(t, assistantErrorReply, assistantMsg.Text)

	// The user's turn stays persisted so the conversation can continue
	// (and later be finalized) despite the failed reply.
	require.Len(t, dbStore.messages, 2)
	assert.Equal(t, userMsg.Text, dbStore.messages[0].Text)
	assert.Equal(t, assistantErrorReply, dbStore.messages[1].Text)
}

func TestSendMessageStoreFailure(t *testing.T) {
	dbStore := &fakeChatStore{createErr: errors.New("connection reset")}
	replier := &fakeReplier{reply: "unused"}

	svc := NewChatService(dbStore, replier)
	_, _, err := svc.SendMessage(context.Background(), "user-1", "temp-1", "Long day at work")
	require.Error(t, err)

	assert.Empty(t, dbStore.messages)
	assert.Empty(t, replier.gotMessage, "model must not be called when the user turn was not stored")
}
