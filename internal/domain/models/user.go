// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Genders accepted on a user record.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
)

// User is an account that can send and receive messages.
//
// NOTE:
//   - Email is stored lowercased and is unique, as is Mobile.
//   - PasswordHash is a bcrypt hash and never leaves the server.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	FirstName    string             `bson:"first_name" json:"first_name"`
	LastName     *string            `bson:"last_name,omitempty" json:"last_name,omitempty"`
	DisplayName  string             `bson:"display_name" json:"display_name"`
	Mobile       string             `bson:"mobile" json:"mobile"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"`
	Gender       string             `bson:"gender" json:"gender"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Name returns the best human label for the user.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.FirstName
}
