package models

import (
	"time"
)

type User struct {
	ID        string     `gorm:"primaryKey;size:64"` // session-issued UUID hex
	Email     *string    `gorm:"size:255;uniqueIndex"`
	ProUntil  *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPro reports whether the user's paid tier is active at the given instant.
func (u *User) IsPro(now time.Time) bool {
	return u.ProUntil != nil && u.ProUntil.After(now)
}

// ExtendPro pushes the PRO expiry forward by d. A still-active expiry is
// stacked on (early renewal keeps unused time); an absent or past expiry
// restarts from now.
func (u *User) ExtendPro(now time.Time, d time.Duration) {
	if u.ProUntil != nil && u.ProUntil.After(now) {
		t := u.ProUntil.Add(d)
		u.ProUntil = &t
	} else {
		t := now.Add(d)
		u.ProUntil = &t
	}
}
