package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/parley/internal/app/system/validators"
	"github.com/dalemusser/parley/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("first EnsureAll failed: %v", err)
	}
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames: %v", err)
	}
	have := map[string]bool{}
	for _, n := range names {
		have[n] = true
	}
	for _, want := range validators.Collections {
		if !have[want] {
			t.Errorf("collection %q not created", want)
		}
	}
}

func TestChatsSchema(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	chats := db.Collection("chats")
	now := time.Now()

	tests := []struct {
		name    string
		doc     bson.M
		wantErr bool
	}{
		{
			name: "valid completed",
			doc: bson.M{
				"sender_id": primitive.NewObjectID(), "receiver_id": primitive.NewObjectID(),
				"message": "hi", "message_status": "completed", "media_files": bson.A{},
				"created_at": now, "updated_at": now,
			},
		},
		{
			name: "unknown status",
			doc: bson.M{
				"sender_id": primitive.NewObjectID(), "receiver_id": primitive.NewObjectID(),
				"message_status": "sent",
			},
			wantErr: true,
		},
		{
			name: "string sender id",
			doc: bson.M{
				"sender_id": "abc", "receiver_id": primitive.NewObjectID(),
				"message_status": "draft",
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chats.InsertOne(ctx, tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("InsertOne err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUsersSchema_RejectsBadGender(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	_, err := db.Collection("users").InsertOne(ctx, bson.M{
		"first_name": "A", "display_name": "A", "email": "a@example.com",
		"mobile": "1", "password": "x", "gender": "Other",
	})
	if err == nil {
		t.Fatal("expected validation failure for gender")
	}
}
