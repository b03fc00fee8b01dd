package models

import (
	"time"
)

const (
	PaymentInitialized = "initialized"
	PaymentSuccessful  = "successful"
	PaymentFailed      = "failed"
)

// Payment is one subscription purchase attempt, keyed by the locally
// generated transaction reference. Verification updates the row in place;
// the tx_ref unique index is what makes concurrent verify calls converge
// on a single row.
type Payment struct {
	ID          uint    `gorm:"primaryKey"`
	UserID      string  `gorm:"not null;index;size:64"`
	TxRef       string  `gorm:"uniqueIndex;size:128"`
	GatewayTxID *string `gorm:"uniqueIndex;size:64"` // assigned by the gateway, known only after checkout
	Status      string  `gorm:"size:64;default:'initialized'"`
	Amount      float64
	Currency    string `gorm:"size:16"`
	RawJSON     string `gorm:"type:text"` // last gateway response, kept for audit
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
