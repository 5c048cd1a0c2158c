package messagestore_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	messagestore "github.com/dalemusser/parley/internal/app/store/messages"
	"github.com/dalemusser/parley/internal/app/system/indexes"
	"github.com/dalemusser/parley/internal/app/system/paging"
	"github.com/dalemusser/parley/internal/domain/models"
	"github.com/dalemusser/parley/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setup(t *testing.T) (*mongo.Database, *messagestore.Store, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	return db, messagestore.New(db), testutil.NewFixtures(t, db)
}

func strp(s string) *string { return &s }

func texts(ms []models.Message) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		if m.Text != nil {
			out[i] = *m.Text
		}
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWindow_Directions(t *testing.T) {
	_, store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	self, peer := primitive.NewObjectID(), primitive.NewObjectID()
	var ids []primitive.ObjectID
	for i, txt := range []string{"m1", "m2", "m3", "m4", "m5"} {
		from, to := self, peer
		if i%2 == 1 {
			from, to = peer, self
		}
		ids = append(ids, fx.CreateMessage(ctx, from, to, txt).ID)
	}
	// invisible rows
	fx.CreateDraft(ctx, self, peer, "draft", nil)
	fx.CreateMessage(ctx, self, primitive.NewObjectID(), "other pair")

	tests := []struct {
		name   string
		sort   string
		cursor string
		limit  int64
		want   []string
	}{
		{"latest page", "", "", 2, []string{"m4", "m5"}},
		{"all", "", "", 50, []string{"m1", "m2", "m3", "m4", "m5"}},
		{"previous of m4", "previous", ids[3].Hex(), 2, []string{"m2", "m3"}},
		{"previous of m1", "previous", ids[0].Hex(), 2, []string{}},
		{"recent after m2", "recent", ids[1].Hex(), 50, []string{"m3", "m4", "m5"}},
		{"recent after m5", "recent", ids[4].Hex(), 50, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := paging.ConfigureKeyset(tt.sort, tt.cursor, tt.limit)
			if err != nil {
				t.Fatalf("ConfigureKeyset: %v", err)
			}
			got, err := store.Window(ctx, self, peer, cfg)
			if err != nil {
				t.Fatalf("Window: %v", err)
			}
			if !equal(texts(got), tt.want) {
				t.Errorf("Window = %v, want %v", texts(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if got[i-1].ID.Hex() >= got[i].ID.Hex() {
					t.Errorf("rows not ascending at %d", i)
				}
			}
		})
	}

	n, err := store.CountConversation(ctx, self, peer)
	if err != nil {
		t.Fatalf("CountConversation: %v", err)
	}
	if n != 5 {
		t.Errorf("CountConversation = %d, want 5", n)
	}
}

func TestMarkViewed_Idempotent(t *testing.T) {
	db, store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	self, peer := primitive.NewObjectID(), primitive.NewObjectID()
	in1 := fx.CreateMessage(ctx, peer, self, "in1")
	fx.CreateMessage(ctx, peer, self, "in2")
	out := fx.CreateMessage(ctx, self, peer, "out")
	fx.CreateDraft(ctx, peer, self, "their draft", nil)

	n, err := store.MarkViewed(ctx, self, peer)
	if err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}
	if n != 2 {
		t.Errorf("first MarkViewed = %d, want 2", n)
	}
	first, _ := store.GetByID(ctx, in1.ID)
	if first.ViewedAt == nil {
		t.Fatal("incoming message should be viewed")
	}

	n, err = store.MarkViewed(ctx, self, peer)
	if err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}
	if n != 0 {
		t.Errorf("second MarkViewed = %d, want 0", n)
	}
	again, _ := store.GetByID(ctx, in1.ID)
	if !again.ViewedAt.Equal(*first.ViewedAt) {
		t.Error("viewed_at should not change on repeat")
	}
	mine, _ := store.GetByID(ctx, out.ID)
	if mine.ViewedAt != nil {
		t.Error("own message must not be marked")
	}
	drafts, _ := db.Collection("chats").CountDocuments(ctx, bson.M{"message_status": "draft", "viewed_at": nil})
	if drafts != 1 {
		t.Error("drafts must not be marked")
	}
}

func TestUpsertDraft_ReplacesAttachments(t *testing.T) {
	db, store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	self, peer := primitive.NewObjectID(), primitive.NewObjectID()
	a := []models.MediaFile{{Filename: "a.png", OriginalName: "a.png", MimeType: "image/png"}}
	b := []models.MediaFile{{Filename: "b.pdf", OriginalName: "b.pdf", MimeType: "application/pdf"}}

	first, err := store.UpsertDraft(ctx, self, peer, nil, a)
	if err != nil {
		t.Fatalf("UpsertDraft: %v", err)
	}
	second, err := store.UpsertDraft(ctx, self, peer, strp("hi"), b)
	if err != nil {
		t.Fatalf("UpsertDraft: %v", err)
	}
	if first.ID != second.ID {
		t.Error("second upsert should update the same draft")
	}
	if len(second.MediaFiles) != 1 || second.MediaFiles[0].Filename != "b.pdf" {
		t.Errorf("media = %+v, want only b.pdf", second.MediaFiles)
	}
	if second.Text == nil || *second.Text != "hi" || !second.IsDraft() {
		t.Errorf("draft = %+v", second)
	}
	n, _ := db.Collection("chats").CountDocuments(ctx, bson.M{})
	if n != 1 {
		t.Errorf("documents = %d, want 1", n)
	}

	got, err := store.FindDraft(ctx, self, peer)
	if err != nil || got.ID != first.ID {
		t.Errorf("FindDraft = %v, %v", got, err)
	}
	if _, err := store.FindDraft(ctx, peer, self); !errors.Is(err, messagestore.ErrNotFound) {
		t.Errorf("reverse direction FindDraft err = %v, want ErrNotFound", err)
	}
}

func TestUpsertDraft_Concurrent(t *testing.T) {
	db, store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	self, peer := primitive.NewObjectID(), primitive.NewObjectID()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.UpsertDraft(context.Background(), self, peer, strp("x"), nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("UpsertDraft: %v", err)
	}
	n, _ := db.Collection("chats").CountDocuments(ctx, bson.M{"message_status": "draft"})
	if n != 1 {
		t.Errorf("drafts = %d, want 1", n)
	}
}

func TestCompleteDraft(t *testing.T) {
	_, store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	self, peer := primitive.NewObjectID(), primitive.NewObjectID()
	files := []models.MediaFile{{Filename: "a.png", MimeType: "image/png"}}
	d := fx.CreateDraft(ctx, self, peer, "", files)

	done, err := store.CompleteDraft(ctx, d.ID, strp("final"), files)
	if err != nil {
		t.Fatalf("CompleteDraft: %v", err)
	}
	if done.ID != d.ID || done.Status != models.StatusCompleted || *done.Text != "final" {
		t.Errorf("completed = %+v", done)
	}
	if _, err := store.CompleteDraft(ctx, d.ID, strp("again"), nil); !errors.Is(err, messagestore.ErrNotFound) {
		t.Errorf("second CompleteDraft err = %v, want ErrNotFound", err)
	}
	if _, err := store.CompleteDraft(ctx, d.ID, strp("  "), nil); !errors.Is(err, messagestore.ErrEmpty) {
		t.Errorf("empty CompleteDraft err = %v, want ErrEmpty", err)
	}
}

func TestInsertCompleted(t *testing.T) {
	_, store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	self, peer := primitive.NewObjectID(), primitive.NewObjectID()
	if _, err := store.InsertCompleted(ctx, self, peer, nil, nil); !errors.Is(err, messagestore.ErrEmpty) {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
	m, err := store.InsertCompleted(ctx, self, peer, strp("hello"), nil)
	if err != nil {
		t.Fatalf("InsertCompleted: %v", err)
	}
	if m.MediaFiles == nil {
		t.Error("media_files should be an empty list, not null")
	}
	got, err := store.GetByID(ctx, m.ID)
	if err != nil || got.Status != models.StatusCompleted {
		t.Errorf("GetByID = %+v, %v", got, err)
	}
}

func TestSoftDelete(t *testing.T) {
	_, store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	self, peer := primitive.NewObjectID(), primitive.NewObjectID()
	m := fx.CreateMessage(ctx, self, peer, "bye")

	if err := store.SoftDelete(ctx, m.ID, peer); !errors.Is(err, messagestore.ErrNotFound) {
		t.Errorf("receiver delete err = %v, want ErrNotFound", err)
	}
	if err := store.SoftDelete(ctx, m.ID, self); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	n, _ := store.CountConversation(ctx, self, peer)
	if n != 0 {
		t.Errorf("CountConversation = %d, want 0 after delete", n)
	}
	if err := store.SoftDelete(ctx, m.ID, self); !errors.Is(err, messagestore.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestReferencedFiles(t *testing.T) {
	_, store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	self, peer := primitive.NewObjectID(), primitive.NewObjectID()
	fx.CreateDraft(ctx, self, peer, "", []models.MediaFile{{Filename: "a.png", MimeType: "image/png"}})
	m, err := store.InsertCompleted(ctx, peer, self, nil, []models.MediaFile{{Filename: "b.pdf", MimeType: "application/pdf"}})
	if err != nil {
		t.Fatalf("InsertCompleted: %v", err)
	}
	if err := store.SoftDelete(ctx, m.ID, peer); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	refs, err := store.ReferencedFiles(ctx, []string{"a.png", "b.pdf", "c.txt"})
	if err != nil {
		t.Fatalf("ReferencedFiles: %v", err)
	}
	if !refs["a.png"] || !refs["b.pdf"] || refs["c.txt"] {
		t.Errorf("refs = %v", refs)
	}

	empty, err := store.ReferencedFiles(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("ReferencedFiles(nil) = %v, %v", empty, err)
	}
}

func TestSoftDelete_DraftIsNotDeletable(t *testing.T) {
	_, store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	self, peer := primitive.NewObjectID(), primitive.NewObjectID()
	draft := fx.CreateDraft(ctx, self, peer, "half written", nil)

	if err := store.SoftDelete(ctx, draft.ID, self); !errors.Is(err, messagestore.ErrNotFound) {
		t.Fatalf("draft delete err = %v, want ErrNotFound", err)
	}
	got, err := store.FindDraft(ctx, self, peer)
	if err != nil || got.DeletedAt != nil {
		t.Fatalf("FindDraft = %+v, %v; want the live draft", got, err)
	}

	done, err := store.CompleteDraft(ctx, draft.ID, strp("hi"), nil)
	if err != nil {
		t.Fatalf("CompleteDraft: %v", err)
	}
	window, err := store.Window(ctx, self, peer, paging.KeysetConfig{Limit: 10})
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(window) != 1 || window[0].ID != done.ID {
		t.Errorf("window = %v, want the completed draft", texts(window))
	}
	if n, _ := store.CountConversation(ctx, self, peer); n != 1 {
		t.Errorf("CountConversation = %d, want 1", n)
	}
}
