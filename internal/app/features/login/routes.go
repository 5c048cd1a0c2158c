// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// Routes is mounted under /auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleLogin)
	r.Post("/refresh-token", h.HandleRefresh)
	r.Get("/session", h.ServeSession)
	r.Post("/logout", h.HandleLogout)
	return r
}
