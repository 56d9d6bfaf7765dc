package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/signup", apiHandler.SignupHandler)
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			// Chat routes
			r.Post("/messages", apiHandler.PostMessageHandler)
			r.Get("/conversations", apiHandler.ListConversationsHandler)
			r.Get("/conversations/{tempConversationID}/messages", apiHandler.GetTranscriptHandler)
			r.Get("/summaries", apiHandler.ListSummariesHandler)

			// Conversation finalization
			r.Post("/generate-summary", apiHandler.GenerateSummaryHandler)

			// Memory routes
			r.Post("/memories", apiHandler.CreateMemoryHandler)
			r.Get("/memories", apiHandler.ListMemoriesHandler)
			r.Get("/memories/{memoryID}", apiHandler.GetMemoryHandler)
			r.Put("/memories/{memoryID}", apiHandler.UpdateMemoryHandler)
			r.Delete("/memories/{memoryID}", apiHandler.DeleteMemoryHandler)
		})
	})

	return r
}
