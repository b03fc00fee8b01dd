package models

import (
	"time"
)

// Session maps an opaque bearer token (cookie value) to a user. Email
// binding may repoint an existing token at another user, so the token is
// the identity of the browser, not of the account.
type Session struct {
	Token     string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"not null;index;size:64"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
