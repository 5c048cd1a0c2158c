package chat

import (
	"errors"
	"net/http"
	"strings"

	messagestore "github.com/dalemusser/parley/internal/app/store/messages"
	"github.com/dalemusser/parley/internal/app/system/inputval"
	"github.com/dalemusser/parley/internal/app/system/jsonresp"
	"github.com/dalemusser/parley/internal/app/system/paging"
	"github.com/dalemusser/parley/internal/app/system/timeouts"
	"github.com/dalemusser/parley/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type conversationResponse struct {
	TotalCount   int64            `json:"totalCount"`
	Messages     []models.Message `json:"messages"`
	DraftMessage *models.Message  `json:"draftMessage"`
	Success      bool             `json:"success"`
}

// ServeConversation handles GET /chat/conversations/{peerId}.
//
// Query: limit (default 50), sort=recent|previous (default previous) and
// sortId, the _id to page from. Opening a conversation marks the peer's
// unviewed messages as viewed.
func (h *Handler) ServeConversation(w http.ResponseWriter, r *http.Request) {
	me, ok := h.self(w, r)
	if !ok {
		return
	}

	res := &inputval.Result{}
	peerHex := strings.TrimSpace(chi.URLParam(r, "peerId"))
	peer, err := primitive.ObjectIDFromHex(peerHex)
	if err != nil {
		res.Add("userId", "User id must be a valid identifier.")
	}
	cfg, err := paging.FromRequest(r)
	if err != nil {
		res.Add("sortId", "Sort id must be a valid identifier.")
	}
	if res.HasErrors() {
		jsonresp.Invalid(w, res)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "load conversation")
	defer cancel()
	fields := []zap.Field{zap.String("user_id", me.ID.Hex()), zap.String("peer_id", peerHex)}

	if _, err := h.Messages.MarkViewed(ctx, me.ID, peer); err != nil {
		jsonresp.ServerError(w, h.Log, "An error occurred.", err, fields...)
		return
	}
	total, err := h.Messages.CountConversation(ctx, me.ID, peer)
	if err != nil {
		jsonresp.ServerError(w, h.Log, "An error occurred.", err, fields...)
		return
	}
	msgs, err := h.Messages.Window(ctx, me.ID, peer, cfg)
	if err != nil {
		jsonresp.ServerError(w, h.Log, "An error occurred.", err, fields...)
		return
	}

	var draft *models.Message
	d, err := h.Messages.FindDraft(ctx, me.ID, peer)
	switch {
	case err == nil:
		withURLs := h.withURLs(*d)
		draft = &withURLs
	case !errors.Is(err, messagestore.ErrNotFound):
		jsonresp.ServerError(w, h.Log, "An error occurred.", err, fields...)
		return
	}

	jsonresp.Write(w, http.StatusOK, conversationResponse{
		TotalCount:   total,
		Messages:     msgs,
		DraftMessage: draft,
		Success:      true,
	})
}

// HandleDelete handles DELETE /chat/messages/{messageId}. Only the sender
// may delete, and only completed messages match; a draft id answers 404.
// The message disappears from every read.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	me, ok := h.self(w, r)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(chi.URLParam(r, "messageId")))
	if err != nil {
		res := &inputval.Result{}
		res.Add("messageId", "Message id must be a valid identifier.")
		jsonresp.Invalid(w, res)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "delete message")
	defer cancel()

	if err := h.Messages.SoftDelete(ctx, id, me.ID); err != nil {
		if errors.Is(err, messagestore.ErrNotFound) {
			jsonresp.Fail(w, http.StatusNotFound, "Message not found.")
			return
		}
		jsonresp.ServerError(w, h.Log, "An error occurred while deleting the message.", err,
			zap.String("user_id", me.ID.Hex()), zap.String("message_id", id.Hex()))
		return
	}
	jsonresp.Write(w, http.StatusOK, map[string]bool{"success": true})
}
