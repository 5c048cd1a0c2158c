// internal/domain/models/message.go
package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message status values.
const (
	StatusDraft     = "draft"
	StatusCompleted = "completed"
)

// MediaFile describes one attachment stored in the upload directory.
type MediaFile struct {
	Filename     string `bson:"filename" json:"filename"`
	OriginalName string `bson:"original_name" json:"original_name"`
	MimeType     string `bson:"mime_type" json:"mime_type"`
}

// Message is one chat entry between a sender and a receiver.
//
// The ObjectID doubles as the pagination cursor. A sender has at most one
// draft per receiver; a draft becomes completed in place and never goes back.
type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	SenderID   primitive.ObjectID `bson:"sender_id" json:"sender_id"`
	ReceiverID primitive.ObjectID `bson:"receiver_id" json:"receiver_id"`
	Text       *string            `bson:"message" json:"message"`
	Status     string             `bson:"message_status" json:"message_status"`
	MediaFiles []MediaFile        `bson:"media_files" json:"media_files"`
	ViewedAt   *time.Time         `bson:"viewed_at" json:"viewed_at"`
	DeletedAt  *time.Time         `bson:"deleted_at" json:"deleted_at"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsDraft reports whether the message is still staged.
func (m Message) IsDraft() bool { return m.Status == StatusDraft }

// HasContent reports whether the message carries non-blank text or at least
// one attachment. Completed messages must always satisfy this.
func (m Message) HasContent() bool {
	if len(m.MediaFiles) > 0 {
		return true
	}
	return m.Text != nil && strings.TrimSpace(*m.Text) != ""
}

// IsValidStatus reports whether s is a known message status.
func IsValidStatus(s string) bool {
	return s == StatusDraft || s == StatusCompleted
}
