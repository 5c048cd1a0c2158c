package chat

import (
	"net/http"

	userstore "github.com/dalemusser/parley/internal/app/store/users"
	"github.com/dalemusser/parley/internal/app/system/jsonresp"
	"github.com/dalemusser/parley/internal/app/system/paging"
	"github.com/dalemusser/parley/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type usersResponse struct {
	TotalCount int64               `json:"totalCount"`
	Users      []userstore.Summary `json:"users"`
	Success    bool                `json:"success"`
}

// ServeUsers handles GET /chat/users?skip=&limit=.
func (h *Handler) ServeUsers(w http.ResponseWriter, r *http.Request) {
	me, ok := h.self(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list chat users")
	defer cancel()

	page, err := h.Users.ListWithRecentMessage(ctx, me.ID, paging.ParseSkip(r), paging.ParseLimit(r))
	if err != nil {
		jsonresp.ServerError(w, h.Log, "An error occurred while loading chat members.", err,
			zap.String("user_id", me.ID.Hex()))
		return
	}

	jsonresp.Write(w, http.StatusOK, usersResponse{
		TotalCount: page.Total,
		Users:      page.Users,
		Success:    true,
	})
}
