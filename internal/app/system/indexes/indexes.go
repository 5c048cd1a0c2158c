// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Index names the stores rely on.
const (
	UsersEmail       = "uniq_users_email"
	UsersMobile      = "uniq_users_mobile"
	UsersDisplayName = "idx_users_displayname_id"
	ChatsPair        = "idx_chats_sender_receiver_id"
	ChatsUnviewed    = "idx_chats_receiver_sender_viewed"
	ChatsOneDraft    = "uniq_chats_draft_pair"
	ChatsMediaFile   = "idx_chats_media_filename"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureChats(ctx, db); err != nil {
		problems = append(problems, "chats: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name    string `bson:"name"`
	Key     bson.D `bson:"key"`
	Unique  *bool  `bson:"unique,omitempty"`
	Partial bson.D `bson:"partialFilterExpression,omitempty"`
}

type desiredIndex struct {
	name    string
	sig     string
	unique  bool
	partial string
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func partialSig(filter any) string {
	if filter == nil {
		return ""
	}
	switch f := filter.(type) {
	case bson.D:
		return keySig(f)
	case bson.M:
		d := make(bson.D, 0, len(f))
		for k, v := range f {
			d = append(d, bson.E{Key: k, Value: v})
		}
		return keySig(d)
	}
	return fmt.Sprintf("%v", filter)
}

func describe(m mongo.IndexModel) desiredIndex {
	d := desiredIndex{sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		if m.Options.Unique != nil {
			d.unique = *m.Options.Unique
		}
		d.partial = partialSig(m.Options.PartialFilterExpression)
	}
	return d
}

func (d desiredIndex) matches(ex existingIndex) bool {
	exUnique := ex.Unique != nil && *ex.Unique
	return d.unique == exUnique && d.partial == partialSig(ex.Partial)
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

// ensureIndexSet creates missing indexes and replaces ones whose key pattern
// matches but whose name, uniqueness or partial filter differ.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listExisting(ctx, coll)

	for _, m := range models {
		want := describe(m)
		start := time.Now()
		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", want.name),
			zap.String("keys", want.sig),
			zap.Bool("unique", want.unique))

		if ex, ok := existing[want.sig]; ok {
			if want.matches(ex) && (want.name == "" || ex.Name == want.name) {
				log.Info("reusing existing index", zap.Duration("took", time.Since(start)))
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				log.Warn("drop existing index failed", zap.String("existing", ex.Name), zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), want.name, err))
				continue
			}
			log.Info("dropped index with stale options", zap.String("existing", ex.Name))
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if wafflemongo.IsDup(err) && want.unique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), want.name))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), want.name, err))
			}
			log.Warn("index ensure failed", zap.Duration("took", time.Since(start)), zap.Error(err))
			continue
		}
		log.Info("index ensured", zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(UsersEmail),
		},
		{
			Keys:    bson.D{{Key: "mobile", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(UsersMobile),
		},
		// stable order for users without a recent message
		{
			Keys:    bson.D{{Key: "display_name", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName(UsersDisplayName),
		},
	})
}

func ensureChats(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("chats"), []mongo.IndexModel{
		// conversation windows: both directions of a pair, ordered by _id
		{
			Keys: bson.D{
				{Key: "sender_id", Value: 1},
				{Key: "receiver_id", Value: 1},
				{Key: "_id", Value: -1},
			},
			Options: options.Index().SetName(ChatsPair),
		},
		// viewed marking on conversation open
		{
			Keys: bson.D{
				{Key: "receiver_id", Value: 1},
				{Key: "sender_id", Value: 1},
				{Key: "viewed_at", Value: 1},
			},
			Options: options.Index().SetName(ChatsUnviewed),
		},
		// at most one draft per (sender, receiver)
		{
			Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName(ChatsOneDraft).
				SetPartialFilterExpression(bson.D{{Key: "message_status", Value: "draft"}}),
		},
		// orphaned upload sweep
		{
			Keys:    bson.D{{Key: "media_files.filename", Value: 1}},
			Options: options.Index().SetName(ChatsMediaFile),
		},
	})
}
