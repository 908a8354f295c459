package domain

import "time"

// UserStatus is the lifecycle status of an account.
type UserStatus string

const (
	UserStatusPending UserStatus = "pending"
	UserStatusActive  UserStatus = "active"
)

// User represents an application user stored in the database.
// A verified user is always active.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Phone        string     `db:"phone" json:"phone"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"firstName"`
	LastName     string     `db:"last_name" json:"lastName"`
	Status       UserStatus `db:"status" json:"status"`
	IsVerified   bool       `db:"is_verified" json:"isVerified"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// NewPendingUser returns an unverified user ready to be persisted.
func NewPendingUser(phone, passwordHash, firstName, lastName string) *User {
	return &User{
		Phone:        phone,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Status:       UserStatusPending,
		IsVerified:   false,
	}
}
