package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/parley/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// TestPassword is the plain-text password of users made by CreateUser.
const TestPassword = "password"

var testHash []byte

func passwordHash(t *testing.T) string {
	if testHash == nil {
		h, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		testHash = h
	}
	return string(testHash)
}

// CreateUser inserts a user with the given display name and email.
func (f *Fixtures) CreateUser(ctx context.Context, displayName, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		FirstName:    displayName,
		DisplayName:  displayName,
		Mobile:       "+1 555" + primitive.NewObjectID().Hex()[18:],
		Email:        email,
		PasswordHash: passwordHash(f.t),
		Gender:       models.GenderFemale,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateMessage inserts a completed message from sender to receiver.
func (f *Fixtures) CreateMessage(ctx context.Context, sender, receiver primitive.ObjectID, text string) models.Message {
	f.t.Helper()
	return f.insertMessage(ctx, sender, receiver, text, models.StatusCompleted, nil)
}

// CreateDraft inserts a draft from sender to receiver.
func (f *Fixtures) CreateDraft(ctx context.Context, sender, receiver primitive.ObjectID, text string, files []models.MediaFile) models.Message {
	f.t.Helper()
	return f.insertMessage(ctx, sender, receiver, text, models.StatusDraft, files)
}

func (f *Fixtures) insertMessage(ctx context.Context, sender, receiver primitive.ObjectID, text, status string, files []models.MediaFile) models.Message {
	f.t.Helper()
	if files == nil {
		files = []models.MediaFile{}
	}
	now := time.Now().UTC()
	m := models.Message{
		ID:         primitive.NewObjectID(),
		SenderID:   sender,
		ReceiverID: receiver,
		Status:     status,
		MediaFiles: files,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if text != "" {
		m.Text = &text
	}
	if _, err := f.db.Collection("chats").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test message: %v", err)
	}
	return m
}
