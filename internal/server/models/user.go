// Package models defines server-side data models persisted by the stores.
package models

import "time"

// User is an identity record kept in the relational store. PasswordHash is
// the bcrypt verifier, never the plaintext.
type User struct {
	ID           string
	FirstName    string
	Email        string
	PasswordHash string
	Phone        string
	CreatedAt    time.Time
}

// PublicUser is the projection of User that may leave the server.
type PublicUser struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Public strips everything but the public fields.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:        u.ID,
		FirstName: u.FirstName,
		Email:     u.Email,
		Phone:     u.Phone,
	}
}
