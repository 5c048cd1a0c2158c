// internal/app/features/realtime/handler.go
package realtime

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/parley/internal/app/system/auth"
	"github.com/dalemusser/parley/internal/app/system/jsonresp"
	"github.com/dalemusser/parley/internal/app/system/wshub"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades authenticated requests to WebSocket connections and
// registers them with the hub under the caller's user id.
type Handler struct {
	Hub      *wshub.Hub
	Tokens   *auth.TokenManager
	Upgrader websocket.Upgrader
	Log      *zap.Logger
}

// NewHandler builds the realtime handler. origins lists the browser origins
// allowed to connect; "*" or an empty list accepts any origin.
func NewHandler(hub *wshub.Hub, tokens *auth.TokenManager, origins []string, logger *zap.Logger) *Handler {
	h := &Handler{Hub: hub, Tokens: tokens, Log: logger}
	h.Upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := map[string]bool{}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			allowed[strings.ToLower(o)] = true
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// non-browser clients
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}

// ServeWS handles GET /ws?token=<access token>.
//
// Browsers cannot set headers on a WebSocket handshake, so the access token
// travels in the query string. A bearer header is accepted as well.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.BearerToken(r)
	}
	if token == "" {
		jsonresp.Fail(w, http.StatusUnauthorized, "Access token missing")
		return
	}
	id, err := h.Tokens.VerifyAccess(token)
	if err != nil {
		jsonresp.Fail(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.Log.Warn("websocket upgrade failed", zap.String("user_id", id.ID.Hex()), zap.Error(err))
		return
	}
	h.Log.Debug("websocket connected", zap.String("user_id", id.ID.Hex()))
	wshub.NewClient(h.Hub, id.ID.Hex(), conn).Serve()
	h.Log.Debug("websocket closed", zap.String("user_id", id.ID.Hex()))
}
