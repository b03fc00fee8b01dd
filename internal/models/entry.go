package models

import (
	"time"
)

// Entry is one journal record. Immutable once written.
type Entry struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     string `gorm:"not null;index;size:64"`
	Text       string `gorm:"not null;type:text"`
	TopEmotion string `gorm:"size:64"`
	TopScore   float64
	ScoresJSON string    `gorm:"type:text"` // serialized label->score map
	CreatedAt  time.Time `gorm:"index"`
}
