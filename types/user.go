package types

import "time"

// DefaultUserStatus is assigned to every account at registration.
const DefaultUserStatus = "I am new!"

// User represents a registered author.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id" db:"id"`

	// Email is the unique login address of the user.
	Email string `json:"email" db:"email"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// It is set once at registration and never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Status is a free-text line the user can change at any time.
	Status string `json:"status" db:"status"`

	// PostIDs is the ownership index: the ids of every post this user
	// created, in creation order. It is derived from the user_posts table.
	PostIDs []int64 `json:"posts" db:"-"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent change to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserView is the normalized form of a User returned to clients.
type UserView struct {
	ID        string   `json:"_id"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	Posts     []string `json:"posts"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

// AuthPayload is returned by a successful login.
type AuthPayload struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}
