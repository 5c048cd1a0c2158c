// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/parley/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Collections this app owns, in creation order.
var Collections = []string{"users", "chats"}

// EnsureAll creates collections (if missing) and attaches JSON-Schema
// validators. Deployments that don't support collMod/validators (some
// DocumentDB versions) are logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	schemas := map[string]bson.M{
		"users": usersSchema(),
		"chats": chatsSchema(),
	}
	for _, coll := range Collections {
		if err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			continue
		}
		if err := setValidator(ctx, db, coll, schemas[coll]); err != nil {
			if isUnsupported(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				continue
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

func ensureCollection(ctx context.Context, db *mongo.Database, name string) error {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err == nil && len(names) > 0 {
		zap.L().Info("collection exists", zap.String("collection", name))
		return nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		// lost a race with another instance, or a prior run
		if commandErr(err, []int32{48}, "already exists", "namespace exists") {
			zap.L().Info("collection exists", zap.String("collection", name))
			return nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isUnsupported(err error) bool {
	return commandErr(err, []int32{59, 115}, "no such command", "not implemented", "not supported")
}

// commandErr matches a server error by code or by message fragment.
func commandErr(err error, codes []int32, fragments ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		for _, c := range codes {
			if ce.Code == c {
				return true
			}
		}
	}
	s := strings.ToLower(err.Error())
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"first_name", "display_name", "email", "mobile", "password", "gender"},
			"properties": bson.M{
				"first_name":   nonBlank,
				"last_name":    bson.M{"bsonType": bson.A{"string", "null"}},
				"display_name": nonBlank,
				"mobile":       nonBlank,
				"email":        nonBlank,
				"password":     nonBlank,
				"gender":       bson.M{"enum": bson.A{models.GenderMale, models.GenderFemale}},
			},
		},
	}
}

func chatsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"sender_id", "receiver_id", "message_status"},
			"properties": bson.M{
				"sender_id":      bson.M{"bsonType": "objectId"},
				"receiver_id":    bson.M{"bsonType": "objectId"},
				"message":        bson.M{"bsonType": bson.A{"string", "null"}},
				"message_status": bson.M{"enum": bson.A{models.StatusDraft, models.StatusCompleted}},
				"media_files": bson.M{
					"bsonType": "array",
					"items": bson.M{
						"bsonType": "object",
						"required": bson.A{"filename", "mime_type"},
						"properties": bson.M{
							"filename":      nonBlank,
							"original_name": bson.M{"bsonType": "string"},
							"mime_type":     nonBlank,
						},
					},
				},
				"viewed_at":  bson.M{"bsonType": bson.A{"date", "null"}},
				"deleted_at": bson.M{"bsonType": bson.A{"date", "null"}},
			},
		},
	}
}
