package chat

import (
	"errors"
	"net/http"

	"github.com/dalemusser/parley/internal/app/system/inputval"
	"github.com/dalemusser/parley/internal/app/system/jsonresp"
	"github.com/dalemusser/parley/internal/app/system/metrics"
	"github.com/dalemusser/parley/internal/app/system/timeouts"
	"github.com/dalemusser/parley/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type sendResponse struct {
	Success bool           `json:"success"`
	Message models.Message `json:"message"`
}

// HandleSend handles POST /chat/send/{peerId} and /chat/send/{peerId}/{mode}.
//
// The body is multipart with an optional "message" field and up to ten
// "files" parts (a plain urlencoded body is accepted for text only).
// Responds 201 with the stored message, 400 on validation failure.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	me, ok := h.self(w, r)
	if !ok {
		return
	}
	fields := []zap.Field{zap.String("user_id", me.ID.Hex()), zap.String("peer_id", chi.URLParam(r, "peerId"))}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "send message")
	defer cancel()

	text, files, err := h.parseSendForm(ctx, w, r)
	if err != nil {
		var ue *uploadError
		if errors.As(err, &ue) {
			metrics.SendRejected.WithLabelValues("upload").Inc()
			res := &inputval.Result{}
			res.Add(ue.field, ue.message)
			jsonresp.Write(w, ue.status, jsonresp.Envelope{Success: false, Message: ue.message, Errors: res.Errors})
			return
		}
		jsonresp.ServerError(w, h.Log, "An error occurred while storing attachments.", err, fields...)
		return
	}

	out, err := h.Sender.Send(ctx, SendInput{
		SelfID: me.ID,
		PeerID: chi.URLParam(r, "peerId"),
		Mode:   chi.URLParam(r, "mode"),
		Text:   text,
		Files:  files,
	})
	if err != nil {
		if rmErr := h.Files.Remove(files); rmErr != nil {
			h.Log.Warn("remove rejected attachments failed", append(fields, zap.Error(rmErr))...)
		}
		var ve *ValidationError
		if errors.As(err, &ve) {
			jsonresp.Invalid(w, ve.Result)
			return
		}
		jsonresp.ServerError(w, h.Log, "An error occurred while creating the conversation.", err, fields...)
		return
	}

	if len(out.Replaced) > 0 {
		if err := h.Files.Remove(out.Replaced); err != nil {
			h.Log.Warn("remove replaced attachments failed", append(fields, zap.Error(err))...)
		}
	}

	jsonresp.Write(w, http.StatusCreated, sendResponse{Success: true, Message: out.Message})
}
