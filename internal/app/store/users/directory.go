package userstore

import (
	"context"
	"time"

	"github.com/dalemusser/parley/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// RecentChat is the latest completed message exchanged with the caller.
type RecentChat struct {
	ID         primitive.ObjectID `bson:"_id" json:"_id"`
	Text       *string            `bson:"message" json:"message"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	MediaFiles []models.MediaFile `bson:"media_files" json:"media_files"`
}

// Summary is one row of the chat user list.
type Summary struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	FirstName   string             `bson:"first_name" json:"first_name"`
	LastName    *string            `bson:"last_name,omitempty" json:"last_name,omitempty"`
	DisplayName string             `bson:"display_name" json:"display_name"`
	Email       string             `bson:"email" json:"email"`
	Mobile      string             `bson:"mobile" json:"mobile"`
	Gender      string             `bson:"gender" json:"gender"`
	RecentChat  *RecentChat        `bson:"recent_chat,omitempty" json:"recent_chat"`
}

// Page is a window of the user list plus the total independent of paging.
type Page struct {
	Total int64
	Users []Summary
}

// ListWithRecentMessage returns every user except self, each annotated with
// the most recent completed, non-deleted message exchanged with self. Users
// with a recent message come first, newest first; the rest follow by display
// name.
func (s *Store) ListWithRecentMessage(ctx context.Context, self primitive.ObjectID, skip, limit int64) (Page, error) {
	// The caller is never a row, so it is not counted either.
	total, err := s.CountExcept(ctx, self)
	if err != nil {
		return Page{}, err
	}

	cur, err := s.c.Aggregate(ctx, recentMessagePipeline(self, skip, limit))
	if err != nil {
		return Page{}, err
	}
	defer cur.Close(ctx)

	users := make([]Summary, 0)
	if err := cur.All(ctx, &users); err != nil {
		return Page{}, err
	}
	return Page{Total: total, Users: users}, nil
}

func recentMessagePipeline(self primitive.ObjectID, skip, limit int64) mongo.Pipeline {
	between := bson.M{"$or": bson.A{
		bson.M{"$and": bson.A{
			bson.M{"$eq": bson.A{"$sender_id", "$$peer"}},
			bson.M{"$eq": bson.A{"$receiver_id", self}},
		}},
		bson.M{"$and": bson.A{
			bson.M{"$eq": bson.A{"$sender_id", self}},
			bson.M{"$eq": bson.A{"$receiver_id", "$$peer"}},
		}},
	}}

	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": bson.M{"$ne": self}}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "chats",
			"let":  bson.M{"peer": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$and": bson.A{
					between,
					bson.M{"$eq": bson.A{"$message_status", models.StatusCompleted}},
					bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{"$deleted_at", nil}}, nil}},
				}}}},
				bson.M{"$sort": bson.M{"_id": -1}},
				bson.M{"$limit": 1},
				bson.M{"$project": bson.M{"message": 1, "created_at": 1, "media_files": 1}},
			},
			"as": "recent_chat",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$recent_chat", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$project", Value: bson.M{"password": 0}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "recent_chat._id", Value: -1},
			{Key: "display_name", Value: 1},
			{Key: "_id", Value: 1},
		}}},
		{{Key: "$skip", Value: skip}},
		{{Key: "$limit", Value: limit}},
	}
}
