// internal/app/features/chat/routes.go
package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the chat API. requireAuth is the bearer middleware; every
// route needs an authenticated caller.
func Routes(h *Handler, requireAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(requireAuth)
	r.Get("/users", h.ServeUsers)
	r.Get("/conversations/{peerId}", h.ServeConversation)
	r.Post("/send/{peerId}", h.HandleSend)
	r.Post("/send/{peerId}/{mode}", h.HandleSend)
	r.Delete("/messages/{messageId}", h.HandleDelete)
	return r
}
