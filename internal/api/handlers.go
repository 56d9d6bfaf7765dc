package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jibzus/TLJ1/internal/auth"
	"github.com/jibzus/TLJ1/internal/core"
	"github.com/jibzus/TLJ1/internal/store"
)

// ConversationFinalizer closes a conversation and returns its summary and
// permanent id.
type ConversationFinalizer interface {
	Finalize(ctx context.Context, tempConversationID, userID string) (*core.FinalizeResult, error)
}

type APIHandler struct {
	jwtSecret     string
	chatService   *core.ChatService
	memoryService *core.MemoryService
	finalizer     ConversationFinalizer
}

func NewAPIHandler(jwtSecret string, cs *core.ChatService, ms *core.MemoryService, fin ConversationFinalizer) *APIHandler {
	return &APIHandler{
		jwtSecret:     jwtSecret,
		chatService:   cs,
		memoryService: ms,
		finalizer:     fin,
	}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		externalUserID, err := auth.ValidateJWT(h.jwtSecret, tokenString)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		user, err := h.chatService.GetUserByExternalID(r.Context(), externalUserID)
		if err != nil {
			log.Printf("Error in JWTAuthMiddleware for user %s: %v", externalUserID, err)
			respondError(w, http.StatusInternalServerError, "Failed to process user identity")
			return
		}

		if user == nil {
			respondError(w, http.StatusUnauthorized, "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), "userID", user.ID)
		ctx = context.WithValue(ctx, "externalUserID", user.ExternalUserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type SignupRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.UserID == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "User ID and password are required")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for user %s: %v", req.UserID, err)
		respondError(w, http.StatusInternalServerError, "Failed to process password")
		return
	}

	user, err := h.chatService.CreateUser(r.Context(), req.UserID, hashedPassword)
	if err != nil {
		log.Printf("Error creating user %s: %v", req.UserID, err)
		respondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.UserID == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "User ID and password are required")
		return
	}

	user, err := h.chatService.GetUserByExternalID(r.Context(), req.UserID)
	if err != nil {
		log.Printf("Error getting user %s: %v", req.UserID, err)
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := auth.GenerateJWT(h.jwtSecret, req.UserID)
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", req.UserID, err)
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

type PostMessageRequest struct {
	TempConversationID string `json:"temp_conversation_id"`
	Content            string `json:"content"`
}

type PostMessageResponse struct {
	UserMessage      *store.Message `json:"user_message"`
	AssistantMessage *store.Message `json:"assistant_message"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.TempConversationID == "" {
		respondError(w, http.StatusBadRequest, "temp_conversation_id is required")
		return
	}
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "Message content cannot be empty")
		return
	}

	userMsg, assistantMsg, err := h.chatService.SendMessage(r.Context(), userID, req.TempConversationID, req.Content)
	if err != nil {
		log.Printf("Error posting message for user %s, conversation %s: %v", userID, req.TempConversationID, err)
		respondError(w, http.StatusInternalServerError, "Failed to post message")
		return
	}

	respondJSON(w, http.StatusOK, PostMessageResponse{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	})
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	conversations, err := h.chatService.ListConversations(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing conversations for user %s: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}
	respondJSON(w, http.StatusOK, conversations)
}

func (h *APIHandler) GetTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)
	tempConversationID := chi.URLParam(r, "tempConversationID")

	messages, err := h.chatService.GetTranscript(r.Context(), userID, tempConversationID)
	if err != nil {
		log.Printf("Error getting transcript for user %s, conversation %s: %v", userID, tempConversationID, err)
		respondError(w, http.StatusInternalServerError, "Failed to get transcript")
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

func (h *APIHandler) ListSummariesHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	summaries, err := h.chatService.ListSummaries(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing summaries for user %s: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "Failed to list summaries")
		return
	}
	respondJSON(w, http.StatusOK, summaries)
}

type GenerateSummaryRequest struct {
	TempConversationID string `json:"tempConversationId"`
	UserID             string `json:"userId"`
}

func (h *APIHandler) GenerateSummaryHandler(w http.ResponseWriter, r *http.Request) {
	authedUserID := r.Context().Value("userID").(string)

	var req GenerateSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.TempConversationID == "" || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}
	if req.UserID != authedUserID {
		respondError(w, http.StatusForbidden, "Cannot finalize another user's conversation")
		return
	}

	log.Printf("Generating summary for conversation %s and user %s", req.TempConversationID, req.UserID)

	result, err := h.finalizer.Finalize(r.Context(), req.TempConversationID, req.UserID)
	if err != nil {
		// The finalizer already logged the failing stage; the client only
		// gets a generic message.
		respondError(w, http.StatusInternalServerError, "Failed to generate or save summary")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *APIHandler) CreateMemoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	var input core.MemoryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	memory, err := h.memoryService.Create(r.Context(), userID, input)
	if err != nil {
		if errors.Is(err, core.ErrMemoryInvalid) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Error creating memory for user %s: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "Failed to create memory")
		return
	}

	respondJSON(w, http.StatusCreated, memory)
}

func (h *APIHandler) ListMemoriesHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	memories, err := h.memoryService.List(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing memories for user %s: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "Failed to list memories")
		return
	}
	respondJSON(w, http.StatusOK, memories)
}

func (h *APIHandler) GetMemoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)
	memoryID := chi.URLParam(r, "memoryID")

	memory, err := h.memoryService.Get(r.Context(), memoryID, userID)
	if err != nil {
		log.Printf("Error getting memory %s for user %s: %v", memoryID, userID, err)
		respondError(w, http.StatusInternalServerError, "Failed to get memory")
		return
	}
	if memory == nil {
		respondError(w, http.StatusNotFound, "Memory not found")
		return
	}
	respondJSON(w, http.StatusOK, memory)
}

type UpdateMemoryRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *APIHandler) UpdateMemoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)
	memoryID := chi.URLParam(r, "memoryID")

	var req UpdateMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	memory, err := h.memoryService.Update(r.Context(), memoryID, userID, req.Title, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrMemoryInvalid):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			respondError(w, http.StatusNotFound, "Memory not found")
		default:
			log.Printf("Error updating memory %s for user %s: %v", memoryID, userID, err)
			respondError(w, http.StatusInternalServerError, "Failed to update memory")
		}
		return
	}
	respondJSON(w, http.StatusOK, memory)
}

func (h *APIHandler) DeleteMemoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)
	memoryID := chi.URLParam(r, "memoryID")

	if err := h.memoryService.Delete(r.Context(), memoryID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Memory not found")
			return
		}
		log.Printf("Error deleting memory %s for user %s: %v", memoryID, userID, err)
		respondError(w, http.StatusInternalServerError, "Failed to delete memory")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
