package chat

import (
	"context"
	"errors"
	"strings"

	messagestore "github.com/dalemusser/parley/internal/app/store/messages"
	"github.com/dalemusser/parley/internal/app/system/htmlsanitize"
	"github.com/dalemusser/parley/internal/app/system/inputval"
	"github.com/dalemusser/parley/internal/app/system/metrics"
	"github.com/dalemusser/parley/internal/app/system/notify"
	"github.com/dalemusser/parley/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MessageWriter is the slice of the message store the send use case needs.
type MessageWriter interface {
	FindDraft(ctx context.Context, sender, receiver primitive.ObjectID) (*models.Message, error)
	UpsertDraft(ctx context.Context, sender, receiver primitive.ObjectID, text *string, files []models.MediaFile) (models.Message, error)
	CompleteDraft(ctx context.Context, id primitive.ObjectID, text *string, files []models.MediaFile) (models.Message, error)
	InsertCompleted(ctx context.Context, sender, receiver primitive.ObjectID, text *string, files []models.MediaFile) (models.Message, error)
}

// SendInput is one send request after the upload layer has stored files.
type SendInput struct {
	SelfID primitive.ObjectID `json:"-"`
	PeerID string             `json:"userId" validate:"required,objectid" label:"User id"`
	Mode   string             `json:"mode" validate:"chatmode" label:"Mode"`
	Text   string             `json:"message"`
	Files  []models.MediaFile `json:"-"`
}

// SendResult is the persisted message plus staged files that are no longer
// referenced and can be removed from disk.
type SendResult struct {
	Message  models.Message
	Replaced []models.MediaFile
}

// ValidationError carries field-level problems; nothing was written.
type ValidationError struct {
	Result *inputval.Result
}

func (e *ValidationError) Error() string { return e.Result.All() }

// Sender persists drafts and completed messages and tells the receiver.
type Sender struct {
	store    MessageWriter
	notifier notify.Notifier
	log      *zap.Logger
}

// NewSender wires the use case. A nil notifier discards events.
func NewSender(store MessageWriter, notifier notify.Notifier, logger *zap.Logger) *Sender {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Sender{store: store, notifier: notifier, log: logger}
}

func invalid(field, msg string) *ValidationError {
	res := &inputval.Result{}
	res.Add(field, msg)
	return &ValidationError{Result: res}
}

// cleanText strips markup and returns nil for blank text.
func cleanText(s string) *string {
	t := strings.TrimSpace(htmlsanitize.Text(s))
	if t == "" {
		return nil
	}
	return &t
}

// Send validates in, then stores a draft or a completed message. Completed
// messages are pushed to the receiver as receive_message.
func (s *Sender) Send(ctx context.Context, in SendInput) (SendResult, error) {
	if strings.TrimSpace(in.Mode) == "" {
		in.Mode = models.StatusCompleted
	}
	if res := inputval.Validate(in); res.HasErrors() {
		metrics.SendRejected.WithLabelValues("validation").Inc()
		return SendResult{}, &ValidationError{Result: res}
	}
	peer, _ := primitive.ObjectIDFromHex(strings.TrimSpace(in.PeerID))
	mode := strings.TrimSpace(in.Mode)
	text := cleanText(in.Text)

	existing, err := s.store.FindDraft(ctx, in.SelfID, peer)
	if err != nil && !errors.Is(err, messagestore.ErrNotFound) {
		return SendResult{}, err
	}

	if mode == models.StatusDraft {
		msg, err := s.store.UpsertDraft(ctx, in.SelfID, peer, text, in.Files)
		if err != nil {
			return SendResult{}, err
		}
		metrics.MessagesSaved.WithLabelValues(mode).Inc()
		return SendResult{Message: msg, Replaced: staleFiles(existing, in.Files)}, nil
	}

	files := in.Files
	if len(files) == 0 && existing != nil {
		files = existing.MediaFiles
	}
	if text == nil && len(files) == 0 {
		metrics.SendRejected.WithLabelValues("empty").Inc()
		return SendResult{}, invalid("message", "Message text or at least one file is required.")
	}

	var msg models.Message
	if existing != nil {
		msg, err = s.store.CompleteDraft(ctx, existing.ID, text, files)
		if errors.Is(err, messagestore.ErrNotFound) {
			// completed by a concurrent request; store ours as its own message
			s.log.Debug("draft completed concurrently", zap.String("draft_id", existing.ID.Hex()))
			msg, err = s.store.InsertCompleted(ctx, in.SelfID, peer, text, files)
		}
	} else {
		msg, err = s.store.InsertCompleted(ctx, in.SelfID, peer, text, files)
	}
	if err != nil {
		return SendResult{}, err
	}
	metrics.MessagesSaved.WithLabelValues(mode).Inc()

	s.notifier.Notify(ctx, notify.EventReceiveMessage, msg, peer.Hex())
	return SendResult{Message: msg, Replaced: staleFiles(existing, files)}, nil
}

// staleFiles returns the files of prev that kept is not carrying.
func staleFiles(prev *models.Message, kept []models.MediaFile) []models.MediaFile {
	if prev == nil {
		return nil
	}
	keep := make(map[string]bool, len(kept))
	for _, f := range kept {
		keep[f.Filename] = true
	}
	var out []models.MediaFile
	for _, f := range prev.MediaFiles {
		if !keep[f.Filename] {
			out = append(out, f)
		}
	}
	return out
}
