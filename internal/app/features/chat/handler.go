// internal/app/features/chat/handler.go
package chat

import (
	"net/http"
	"strings"

	messagestore "github.com/dalemusser/parley/internal/app/store/messages"
	userstore "github.com/dalemusser/parley/internal/app/store/users"
	"github.com/dalemusser/parley/internal/app/system/attachments"
	"github.com/dalemusser/parley/internal/app/system/auth"
	"github.com/dalemusser/parley/internal/app/system/jsonresp"
	"github.com/dalemusser/parley/internal/app/system/limits"
	"github.com/dalemusser/parley/internal/app/system/notify"
	"github.com/dalemusser/parley/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the /chat API.
type Handler struct {
	Users          *userstore.Store
	Messages       *messagestore.Store
	Files          *attachments.Store
	Sender         *Sender
	BaseURL        string // public origin used for attachment URLs
	MaxUploadBytes int64
	Log            *zap.Logger
}

// NewHandler wires the chat handler. notifier receives receive_message events.
func NewHandler(db *mongo.Database, files *attachments.Store, notifier notify.Notifier, baseURL string, maxUploadBytes int64, logger *zap.Logger) *Handler {
	msgs := messagestore.New(db)
	if maxUploadBytes <= 0 {
		maxUploadBytes = limits.MaxUploadBytes
	}
	return &Handler{
		Users:          userstore.New(db),
		Messages:       msgs,
		Files:          files,
		Sender:         NewSender(msgs, notifier, logger),
		BaseURL:        strings.TrimRight(baseURL, "/"),
		MaxUploadBytes: maxUploadBytes,
		Log:            logger,
	}
}

// self returns the authenticated caller or writes a 401.
func (h *Handler) self(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.CurrentUser(r)
	if !ok {
		jsonresp.Fail(w, http.StatusUnauthorized, "Unauthorized: No token provided")
	}
	return id, ok
}

// fileURL is where GET /uploads serves a stored attachment.
func (h *Handler) fileURL(name string) string {
	return h.BaseURL + "/uploads/" + name
}

// withURLs returns a copy of m whose attachment filenames are fetch URLs.
func (h *Handler) withURLs(m models.Message) models.Message {
	files := make([]models.MediaFile, len(m.MediaFiles))
	for i, f := range m.MediaFiles {
		f.Filename = h.fileURL(f.Filename)
		files[i] = f
	}
	m.MediaFiles = files
	return m
}
