package userstore_test

import (
	"errors"
	"testing"

	userstore "github.com/dalemusser/parley/internal/app/store/users"
	"github.com/dalemusser/parley/internal/domain/models"
	"github.com/dalemusser/parley/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func newUser(display, email, mobile string) models.User {
	return models.User{
		FirstName:    display,
		DisplayName:  display,
		Email:        email,
		Mobile:       mobile,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Gender:       models.GenderMale,
	}
}

func TestStore_Create_Normalizes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := newUser("  Vijay   Kumar ", " VijayKumar@ChatMail.com ", "+91 98765-43210")
	blank := "  "
	u.LastName = &blank

	created, err := store.Create(ctx, u)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.DisplayName != "Vijay Kumar" {
		t.Errorf("DisplayName = %q", created.DisplayName)
	}
	if created.Email != "vijaykumar@chatmail.com" {
		t.Errorf("Email = %q", created.Email)
	}
	if created.Mobile != "+91 9876543210" {
		t.Errorf("Mobile = %q", created.Mobile)
	}
	if created.LastName != nil {
		t.Error("blank last name should be dropped")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	got, err := store.GetByEmail(ctx, "VIJAYKUMAR@chatmail.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("GetByEmail returned %v, want %v", got.ID, created.ID)
	}
}

func TestStore_Create_Invalid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	badGender := newUser("A", "a@example.com", "1")
	badGender.Gender = "Other"
	noName := newUser("", "b@example.com", "2")

	for name, u := range map[string]models.User{"gender": badGender, "name": noName} {
		if _, err := store.Create(ctx, u); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, userstore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	// unique index is needed for the duplicate check
	if _, err := db.Collection("users").Indexes().CreateOne(ctx, uniqueEmail()); err != nil {
		t.Fatalf("create index: %v", err)
	}
	store := userstore.New(db)

	if _, err := store.Create(ctx, newUser("A", "dup@example.com", "1")); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := store.Create(ctx, newUser("B", "DUP@example.com", "2"))
	if !errors.Is(err, userstore.ErrDuplicateEmail) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestStore_ListWithRecentMessage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	me := fx.CreateUser(ctx, "Me", "me@example.com")
	alice := fx.CreateUser(ctx, "Alice", "alice@example.com")
	bob := fx.CreateUser(ctx, "Bob", "bob@example.com")
	carol := fx.CreateUser(ctx, "Carol", "carol@example.com")

	fx.CreateMessage(ctx, alice.ID, me.ID, "old from alice")
	fx.CreateMessage(ctx, me.ID, bob.ID, "to bob")
	fx.CreateMessage(ctx, alice.ID, me.ID, "newest from alice")
	// not visible in the list: draft, message between others, soft-deleted
	fx.CreateDraft(ctx, me.ID, bob.ID, "draft to bob", nil)
	fx.CreateMessage(ctx, bob.ID, carol.ID, "between others")
	deleted := fx.CreateMessage(ctx, carol.ID, me.ID, "deleted")
	if _, err := db.Collection("chats").UpdateByID(ctx, deleted.ID, bson.M{"$set": bson.M{"deleted_at": deleted.CreatedAt}}); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	page, err := store.ListWithRecentMessage(ctx, me.ID, 0, 50)
	if err != nil {
		t.Fatalf("ListWithRecentMessage failed: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("Total = %d, want 3", page.Total)
	}
	if len(page.Users) != 3 {
		t.Fatalf("len(Users) = %d, want 3", len(page.Users))
	}

	wantOrder := []primitive.ObjectID{alice.ID, bob.ID, carol.ID}
	for i, want := range wantOrder {
		if page.Users[i].ID != want {
			t.Errorf("Users[%d] = %s, want %s", i, page.Users[i].DisplayName, want.Hex())
		}
	}
	if rc := page.Users[0].RecentChat; rc == nil || rc.Text == nil || *rc.Text != "newest from alice" {
		t.Errorf("alice recent chat = %+v", rc)
	}
	if rc := page.Users[1].RecentChat; rc == nil || rc.Text == nil || *rc.Text != "to bob" {
		t.Errorf("bob recent chat = %+v", rc)
	}
	if page.Users[2].RecentChat != nil {
		t.Errorf("carol should have no recent chat, got %+v", page.Users[2].RecentChat)
	}
}

func TestStore_ListWithRecentMessage_Paging(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	me := fx.CreateUser(ctx, "Me", "me@example.com")
	for _, n := range []string{"A", "B", "C", "D"} {
		fx.CreateUser(ctx, n, n+"@example.com")
	}

	page, err := store.ListWithRecentMessage(ctx, me.ID, 1, 2)
	if err != nil {
		t.Fatalf("ListWithRecentMessage failed: %v", err)
	}
	if page.Total != 4 {
		t.Errorf("Total = %d, want 4", page.Total)
	}
	if len(page.Users) != 2 || page.Users[0].DisplayName != "B" || page.Users[1].DisplayName != "C" {
		t.Errorf("page = %+v, want B, C", page.Users)
	}
}

func uniqueEmail() mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
}
