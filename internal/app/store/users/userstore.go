package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/parley/internal/app/system/normalize"
	"github.com/dalemusser/parley/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when the email or mobile is already taken.
	ErrDuplicateEmail = errors.New("a user with this email or mobile already exists")
	errBadGender      = errors.New(`gender must be "Male"|"Female"`)
	errMissingName    = errors.New("first_name and display_name are required")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create normalizes and validates u, then inserts it. PasswordHash must
// already be a bcrypt hash.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FirstName = normalize.Name(u.FirstName)
	u.DisplayName = normalize.Name(u.DisplayName)
	u.Email = normalize.Email(u.Email)
	u.Mobile = normalize.Mobile(u.Mobile)
	if u.LastName != nil {
		ln := normalize.Name(*u.LastName)
		if ln == "" {
			u.LastName = nil
		} else {
			u.LastName = &ln
		}
	}

	if u.FirstName == "" || u.DisplayName == "" {
		return models.User{}, errMissingName
	}
	if u.Gender != models.GenderMale && u.Gender != models.GenderFemale {
		return models.User{}, errBadGender
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// Count returns the number of users.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}

// CountExcept returns the number of users other than id.
func (s *Store) CountExcept(ctx context.Context, id primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"_id": bson.M{"$ne": id}})
}
