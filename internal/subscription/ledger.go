package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"moodjournal/internal/gateway"
	"moodjournal/internal/models"
)

// txRefPrefix correlates a checkout attempt with the gateway's eventual
// record. The embedded user id keeps references traceable and lets the
// webhook path recover the owner when no session is present.
const txRefPrefix = "mj-"

// Notifier receives a ping after a payment is verified and credited.
type Notifier interface {
	PaymentVerified(ctx context.Context, user *models.User, payment *models.Payment)
}

// Ledger reconciles locally initiated transaction references, the
// gateway's authoritative record, and webhook notifications into a single
// subscription state per user. Both the direct verify call and the webhook
// converge on Verify; correctness under that race rests on the tx_ref
// unique index and the status-conditional update, not on any in-process
// lock.
type Ledger struct {
	DB       *gorm.DB
	Gateway  *gateway.Client
	Amount   float64
	Currency string
	Duration time.Duration
	Notifier Notifier // optional
}

func NewLedger(db *gorm.DB, gw *gateway.Client, amount float64, currency string, durationDays int) *Ledger {
	return &Ledger{
		DB:       db,
		Gateway:  gw,
		Amount:   amount,
		Currency: currency,
		Duration: time.Duration(durationDays) * 24 * time.Hour,
	}
}

// CreateTxRef starts a checkout attempt: generates an unguessable
// reference and records an initialized Payment carrying the current
// price snapshot. Every call inserts a fresh row; abandoned checkouts
// leave initialized rows behind, which is harmless.
func (l *Ledger) CreateTxRef(ctx context.Context, userID string) (string, error) {
	txRef := fmt.Sprintf("%s%s-%s", txRefPrefix, userID, uuid.New().String()[:8])

	p := models.Payment{
		UserID:   userID,
		TxRef:    txRef,
		Status:   models.PaymentInitialized,
		Amount:   l.Amount,
		Currency: l.Currency,
	}
	if err := l.DB.WithContext(ctx).Create(&p).Error; err != nil {
		return "", fmt.Errorf("failed to create payment: %w", err)
	}
	return txRef, nil
}

// VerifyResult reports the outcome of one verification attempt. Payload is
// the gateway's raw response, echoed back for diagnostics on failure.
type VerifyResult struct {
	Verified bool
	Message  string
	Payload  json.RawMessage
}

// Verify fetches the authoritative transaction record from the gateway and
// settles the Payment row for txRef. All five checks must pass for the row
// to go successful and the owner's PRO expiry to be extended; any failure
// marks the row failed and leaves the subscription untouched. Re-verifying
// an already-successful reference settles nothing: the extension is tied
// to the status transition, so the webhook and the direct caller cannot
// double-credit between them.
//
// sessionUserID owns the Payment row if one has to be created here; the
// webhook path passes "" and the owner is recovered from the reference.
func (l *Ledger) Verify(ctx context.Context, gatewayTxID, txRef, sessionUserID string) (*VerifyResult, error) {
	resp, raw, err := l.Gateway.VerifyTransaction(ctx, gatewayTxID)
	if err != nil {
		log.Warn().Err(err).Str("tx_ref", txRef).Msg("Gateway verification call failed")
	}
	if raw == nil {
		raw, _ = json.Marshal(map[string]string{"error": fmt.Sprintf("gateway unreachable: %v", err)})
	}

	// Never trust caller-supplied data: every check is computed from the
	// gateway's own record.
	var statusOK, amountOK, currencyOK, refOK bool
	envelopeOK := resp != nil && resp.Status == "success"
	if envelopeOK {
		statusOK = resp.Data.Status == "successful"
		amountOK = resp.Data.Amount >= l.Amount
		currencyOK = resp.Data.Currency == l.Currency
		refOK = resp.Data.TxRef == txRef
	}
	verified := envelopeOK && statusOK && amountOK && currencyOK && refOK

	var (
		payment  models.Payment
		user     models.User
		credited bool
	)
	txErr := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := l.findOrCreatePayment(tx, txRef, sessionUserID)
		if err != nil {
			return err
		}

		// Audit trail: gateway id and raw payload are kept regardless of
		// the outcome.
		audit := map[string]interface{}{
			"gateway_tx_id": gatewayTxID,
			"raw_json":      string(raw),
		}
		if err := tx.Model(&models.Payment{}).Where("id = ?", p.ID).Updates(audit).Error; err != nil {
			return fmt.Errorf("failed to record gateway response: %w", err)
		}

		target := models.PaymentFailed
		if verified {
			target = models.PaymentSuccessful
		}
		// A successful payment is terminal. The conditional update is the
		// idempotency guard: the racing verifier's UPDATE waits on the row
		// lock, re-evaluates against the committed status and affects
		// nothing.
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status <> ?", p.ID, models.PaymentSuccessful).
			Update("status", target)
		if res.Error != nil {
			return fmt.Errorf("failed to update payment status: %w", res.Error)
		}

		if verified && res.RowsAffected == 1 {
			if err := tx.First(&user, "id = ?", p.UserID).Error; err != nil {
				return fmt.Errorf("failed to load user %s: %w", p.UserID, err)
			}
			user.ExtendPro(time.Now().UTC(), l.Duration)
			if err := tx.Model(&user).Update("pro_until", user.ProUntil).Error; err != nil {
				return fmt.Errorf("failed to extend subscription: %w", err)
			}
			credited = true
		}

		payment = *p
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if credited {
		log.Info().Str("user_id", payment.UserID).Str("tx_ref", txRef).Msg("Payment verified, PRO extended")
		if l.Notifier != nil {
			l.Notifier.PaymentVerified(ctx, &user, &payment)
		}
	}

	if verified {
		return &VerifyResult{Verified: true, Message: "Payment verified. PRO activated."}, nil
	}
	log.Info().
		Str("tx_ref", txRef).
		Bool("envelope_ok", envelopeOK).
		Bool("status_ok", statusOK).
		Bool("amount_ok", amountOK).
		Bool("currency_ok", currencyOK).
		Bool("ref_ok", refOK).
		Msg("Payment verification failed")
	return &VerifyResult{Verified: false, Message: "Verification failed", Payload: raw}, nil
}

// findOrCreatePayment locates the Payment row for txRef, creating one when
// the reference was never initialized locally. The OnConflict clause keyed
// on the tx_ref unique index makes the create race-safe: whoever loses the
// insert re-reads the winner's row.
func (l *Ledger) findOrCreatePayment(tx *gorm.DB, txRef, sessionUserID string) (*models.Payment, error) {
	var p models.Payment
	err := tx.Where("tx_ref = ?", txRef).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up payment: %w", err)
	}

	owner := sessionUserID
	if owner == "" {
		owner, err = OwnerFromTxRef(txRef)
		if err != nil {
			return nil, err
		}
	}

	p = models.Payment{
		UserID:   owner,
		TxRef:    txRef,
		Status:   models.PaymentInitialized,
		Amount:   l.Amount,
		Currency: l.Currency,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_ref"}},
		DoNothing: true,
	}).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	if err := tx.Where("tx_ref = ?", txRef).First(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to reload payment: %w", err)
	}
	return &p, nil
}

// OwnerFromTxRef recovers the user id embedded in a transaction reference
// of the form "mj-<user>-<suffix>".
func OwnerFromTxRef(txRef string) (string, error) {
	if !strings.HasPrefix(txRef, txRefPrefix) {
		return "", fmt.Errorf("malformed tx_ref %q", txRef)
	}
	rest := strings.TrimPrefix(txRef, txRefPrefix)
	i := strings.LastIndex(rest, "-")
	if i <= 0 || i == len(rest)-1 {
		return "", fmt.Errorf("malformed tx_ref %q", txRef)
	}
	return rest[:i], nil
}
