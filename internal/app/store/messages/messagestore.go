// Package messagestore persists chat messages in the "chats" collection.
package messagestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/parley/internal/app/system/paging"
	"github.com/dalemusser/parley/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no message matches.
	ErrNotFound = errors.New("message not found")
	// ErrDuplicateDraft is returned when a draft upsert keeps colliding with
	// a concurrent writer after the retry.
	ErrDuplicateDraft = errors.New("a draft for this conversation already exists")
	// ErrEmpty is returned when a completed message would carry neither text
	// nor attachments.
	ErrEmpty = errors.New("message text or at least one attachment is required")
)

type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("chats"), now: func() time.Time { return time.Now().UTC() }}
}

// notDeleted matches null and missing deleted_at.
var notDeleted = bson.E{Key: "deleted_at", Value: nil}

func between(self, peer primitive.ObjectID) bson.A {
	return bson.A{
		bson.M{"sender_id": self, "receiver_id": peer},
		bson.M{"sender_id": peer, "receiver_id": self},
	}
}

// conversationFilter matches the visible completed messages of the pair.
func conversationFilter(self, peer primitive.ObjectID) bson.D {
	return bson.D{
		{Key: "$or", Value: between(self, peer)},
		{Key: "message_status", Value: bson.M{"$ne": models.StatusDraft}},
		notDeleted,
	}
}

// GetByID loads a message regardless of state.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var m models.Message
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// MarkViewed stamps every unviewed completed message from peer to self.
// Already viewed messages keep their original timestamp.
func (s *Store) MarkViewed(ctx context.Context, self, peer primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx, bson.D{
		{Key: "sender_id", Value: peer},
		{Key: "receiver_id", Value: self},
		{Key: "message_status", Value: models.StatusCompleted},
		{Key: "viewed_at", Value: nil},
		notDeleted,
	}, bson.M{"$set": bson.M{"viewed_at": s.now()}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountConversation counts the visible messages of the pair, ignoring any
// cursor.
func (s *Store) CountConversation(ctx context.Context, self, peer primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, conversationFilter(self, peer))
}

// Window returns one page of the conversation in ascending _id order.
func (s *Store) Window(ctx context.Context, self, peer primitive.ObjectID, cfg paging.KeysetConfig) ([]models.Message, error) {
	filter := conversationFilter(self, peer)
	if w := cfg.KeysetWindow(); w != nil {
		filter = append(filter, bson.E{Key: "_id", Value: w["_id"]})
	}

	find := options.Find()
	cfg.ApplyToFind(find)

	cur, err := s.c.Find(ctx, filter, find)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.Message, 0, cfg.Limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	paging.Reverse(out)
	return out, nil
}

// FindDraft returns the pending draft from sender to receiver.
func (s *Store) FindDraft(ctx context.Context, sender, receiver primitive.ObjectID) (*models.Message, error) {
	var m models.Message
	err := s.c.FindOne(ctx, draftFilter(sender, receiver)).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func draftFilter(sender, receiver primitive.ObjectID) bson.D {
	return bson.D{
		{Key: "sender_id", Value: sender},
		{Key: "receiver_id", Value: receiver},
		{Key: "message_status", Value: models.StatusDraft},
	}
}

// UpsertDraft creates or replaces the staged draft from sender to receiver.
// files replaces whatever was staged before. When two writers race, the
// loser hits the partial unique index and retries once as an update.
func (s *Store) UpsertDraft(ctx context.Context, sender, receiver primitive.ObjectID, text *string, files []models.MediaFile) (models.Message, error) {
	if files == nil {
		files = []models.MediaFile{}
	}
	now := s.now()
	update := bson.M{
		"$set": bson.M{
			"message":     text,
			"media_files": files,
			"updated_at":  now,
		},
		"$setOnInsert": bson.M{
			"viewed_at":  nil,
			"deleted_at": nil,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var m models.Message
	err := s.c.FindOneAndUpdate(ctx, draftFilter(sender, receiver), update, opts).Decode(&m)
	if wafflemongo.IsDup(err) {
		err = s.c.FindOneAndUpdate(ctx, draftFilter(sender, receiver), update, opts).Decode(&m)
		if wafflemongo.IsDup(err) {
			return models.Message{}, ErrDuplicateDraft
		}
	}
	if err != nil {
		return models.Message{}, err
	}
	return m, nil
}

// CompleteDraft turns the draft id into a completed message with the given
// content. ErrNotFound means the draft was completed or removed meanwhile.
func (s *Store) CompleteDraft(ctx context.Context, id primitive.ObjectID, text *string, files []models.MediaFile) (models.Message, error) {
	if files == nil {
		files = []models.MediaFile{}
	}
	if !hasContent(text, files) {
		return models.Message{}, ErrEmpty
	}
	var m models.Message
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "message_status": models.StatusDraft},
		bson.M{"$set": bson.M{
			"message":        text,
			"media_files":    files,
			"message_status": models.StatusCompleted,
			"updated_at":     s.now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, err
	}
	return m, nil
}

// InsertCompleted stores a new completed message.
func (s *Store) InsertCompleted(ctx context.Context, sender, receiver primitive.ObjectID, text *string, files []models.MediaFile) (models.Message, error) {
	if files == nil {
		files = []models.MediaFile{}
	}
	if !hasContent(text, files) {
		return models.Message{}, ErrEmpty
	}
	now := s.now()
	m := models.Message{
		ID:         primitive.NewObjectID(),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		Status:     models.StatusCompleted,
		MediaFiles: files,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.Message{}, err
	}
	return m, nil
}

// SoftDelete hides a completed message the sender owns from every read.
// Drafts are not deletable here; saving an empty draft discards one.
func (s *Store) SoftDelete(ctx context.Context, id, sender primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: id},
			{Key: "sender_id", Value: sender},
			{Key: "message_status", Value: models.StatusCompleted},
			notDeleted,
		},
		bson.M{"$set": bson.M{"deleted_at": s.now(), "updated_at": s.now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReferencedFiles reports which of names are attached to any message,
// drafts and soft-deleted messages included.
func (s *Store) ReferencedFiles(ctx context.Context, names []string) (map[string]bool, error) {
	refs := make(map[string]bool, len(names))
	if len(names) == 0 {
		return refs, nil
	}
	cur, err := s.c.Find(ctx,
		bson.M{"media_files.filename": bson.M{"$in": names}},
		options.Find().SetProjection(bson.M{"media_files.filename": 1}),
	)
	if err != nil {
		return nil, err
	}
	var docs []struct {
		MediaFiles []models.MediaFile `bson:"media_files"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		for _, f := range d.MediaFiles {
			refs[f.Filename] = true
		}
	}
	return refs, nil
}

func hasContent(text *string, files []models.MediaFile) bool {
	m := models.Message{Text: text, MediaFiles: files}
	return m.HasContent()
}
