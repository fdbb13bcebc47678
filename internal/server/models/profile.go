package models

import "time"

// ProfilePicture is the binary payload associated with a user. It lives in
// the blob store, keyed by UserID; the relational store knows nothing of it.
type ProfilePicture struct {
	UserID      string
	Data        []byte
	ContentType string
	UpdatedAt   time.Time
}
