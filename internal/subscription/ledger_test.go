package subscription

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"moodjournal/internal/gateway"
	"moodjournal/internal/models"
	"moodjournal/internal/testdb"
)

const (
	testAmount   = 2000.0
	testCurrency = "NGN"
	testDays     = 365
)

func gatewayReturning(t *testing.T, body string) *gateway.Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	c := gateway.NewClient("sk-test")
	c.BaseURL = ts.URL
	return c
}

func verifyBody(envelope, txRef string, amount float64, currency, status string) string {
	return fmt.Sprintf(
		`{"status":%q,"message":"ok","data":{"id":111,"tx_ref":%q,"amount":%v,"currency":%q,"status":%q}}`,
		envelope, txRef, amount, currency, status)
}

func newTestLedger(t *testing.T, db *gorm.DB, gw *gateway.Client) *Ledger {
	t.Helper()
	return NewLedger(db, gw, testAmount, testCurrency, testDays)
}

func createUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	u := models.User{ID: "a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return &u
}

func loadPayment(t *testing.T, db *gorm.DB, txRef string) *models.Payment {
	t.Helper()
	var p models.Payment
	if err := db.Where("tx_ref = ?", txRef).First(&p).Error; err != nil {
		t.Fatalf("failed to load payment %s: %v", txRef, err)
	}
	return &p
}

func loadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()
	var u models.User
	if err := db.First(&u, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to load user %s: %v", id, err)
	}
	return &u
}

func TestCreateTxRef(t *testing.T) {
	db := testdb.Open(t)
	user := createUser(t, db)
	l := newTestLedger(t, db, nil)

	txRef, err := l.CreateTxRef(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("CreateTxRef error = %v", err)
	}
	if !strings.HasPrefix(txRef, "mj-"+user.ID+"-") {
		t.Fatalf("tx_ref %q does not embed the user id", txRef)
	}

	owner, err := OwnerFromTxRef(txRef)
	if err != nil || owner != user.ID {
		t.Fatalf("OwnerFromTxRef(%q) = (%q, %v), want %q", txRef, owner, err, user.ID)
	}

	p := loadPayment(t, db, txRef)
	if p.Status != models.PaymentInitialized {
		t.Fatalf("status = %q, want initialized", p.Status)
	}
	if p.Amount != testAmount || p.Currency != testCurrency {
		t.Fatalf("price snapshot = (%v, %q), want (%v, %q)", p.Amount, p.Currency, testAmount, testCurrency)
	}
}

func TestCreateTxRefTwiceYieldsDistinctRows(t *testing.T) {
	db := testdb.Open(t)
	user := createUser(t, db)
	l := newTestLedger(t, db, nil)

	ref1, err := l.CreateTxRef(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("CreateTxRef error = %v", err)
	}
	ref2, err := l.CreateTxRef(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("CreateTxRef error = %v", err)
	}
	if ref1 == ref2 {
		t.Fatalf("references must differ, both %q", ref1)
	}

	var count int64
	db.Model(&models.Payment{}).Where("user_id = ? AND status = ?", user.ID, models.PaymentInitialized).Count(&count)
	if count != 2 {
		t.Fatalf("initialized payments = %d, want 2", count)
	}
}

func TestVerifySuccessExtendsSubscription(t *testing.T) {
	db := testdb.Open(t)
	user := createUser(t, db)
	l := newTestLedger(t, db, nil)

	txRef, _ := l.CreateTxRef(context.Background(), user.ID)
	l.Gateway = gatewayReturning(t, verifyBody("success", txRef, testAmount, testCurrency, "successful"))

	before := time.Now().UTC()
	res, err := l.Verify(context.Background(), "111", txRef, user.ID)
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if !res.Verified {
		t.Fatalf("Verify not verified: %+v", res)
	}

	p := loadPayment(t, db, txRef)
	if p.Status != models.PaymentSuccessful {
		t.Fatalf("payment status = %q, want successful", p.Status)
	}
	if p.GatewayTxID == nil || *p.GatewayTxID != "111" {
		t.Fatalf("gateway tx id = %v, want 111", p.GatewayTxID)
	}
	if !strings.Contains(p.RawJSON, `"successful"`) {
		t.Fatalf("raw payload not stored: %q", p.RawJSON)
	}

	u := loadUser(t, db, user.ID)
	if u.ProUntil == nil {
		t.Fatalf("pro_until not set")
	}
	want := before.Add(testDays * 24 * time.Hour)
	if diff := u.ProUntil.Sub(want); diff < 0 || diff > time.Minute {
		t.Fatalf("pro_until = %v, want about %v", u.ProUntil, want)
	}
}

func TestVerifyTwiceExtendsOnlyOnce(t *testing.T) {
	db := testdb.Open(t)
	user := createUser(t, db)
	l := newTestLedger(t, db, nil)

	txRef, _ := l.CreateTxRef(context.Background(), user.ID)
	l.Gateway = gatewayReturning(t, verifyBody("success", txRef, testAmount, testCurrency, "successful"))

	if _, err := l.Verify(context.Background(), "111", txRef, user.ID); err != nil {
		t.Fatalf("first Verify error = %v", err)
	}
	afterFirst := loadUser(t, db, user.ID).ProUntil

	// Webhook and direct caller racing on the same reference: the second
	// verification must be a no-op for the subscription.
	res, err := l.Verify(context.Background(), "111", txRef, "")
	if err != nil {
		t.Fatalf("second Verify error = %v", err)
	}
	if !res.Verified {
		t.Fatalf("re-verification of a successful payment must still report success")
	}

	afterSecond := loadUser(t, db, user.ID).ProUntil
	if !afterSecond.Equal(*afterFirst) {
		t.Fatalf("pro_until moved from %v to %v on re-verification", afterFirst, afterSecond)
	}

	var count int64
	db.Model(&models.Payment{}).Where("tx_ref = ?", txRef).Count(&count)
	if count != 1 {
		t.Fatalf("payment rows = %d, want 1", count)
	}
}

func TestVerifySingleFailingCheck(t *testing.T) {
	cases := []struct {
		name string
		body func(txRef string) string
	}{
		{"envelope not success", func(ref string) string {
			return verifyBody("error", ref, testAmount, testCurrency, "successful")
		}},
		{"transaction not successful", func(ref string) string {
			return verifyBody("success", ref, testAmount, testCurrency, "pending")
		}},
		{"amount too low", func(ref string) string {
			return verifyBody("success", ref, testAmount-0.01, testCurrency, "successful")
		}},
		{"wrong currency", func(ref string) string {
			return verifyBody("success", ref, testAmount, "USD", "successful")
		}},
		{"mismatched reference", func(ref string) string {
			return verifyBody("success", "mj-someone-else-ref1", testAmount, testCurrency, "successful")
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := testdb.Open(t)
			user := createUser(t, db)
			l := newTestLedger(t, db, nil)

			txRef, _ := l.CreateTxRef(context.Background(), user.ID)
			l.Gateway = gatewayReturning(t, tc.body(txRef))

			res, err := l.Verify(context.Background(), "111", txRef, user.ID)
			if err != nil {
				t.Fatalf("Verify error = %v", err)
			}
			if res.Verified {
				t.Fatalf("verification must fail")
			}
			if len(res.Payload) == 0 {
				t.Fatalf("failure must carry the raw payload for diagnostics")
			}

			if p := loadPayment(t, db, txRef); p.Status != models.PaymentFailed {
				t.Fatalf("payment status = %q, want failed", p.Status)
			}
			if u := loadUser(t, db, user.ID); u.ProUntil != nil {
				t.Fatalf("pro_until = %v, want untouched", u.ProUntil)
			}
		})
	}
}

func TestVerifyGatewayUnreachable(t *testing.T) {
	db := testdb.Open(t)
	user := createUser(t, db)
	l := newTestLedger(t, db, nil)

	txRef, _ := l.CreateTxRef(context.Background(), user.ID)

	gw := gateway.NewClient("sk-test")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	gw.BaseURL = ts.URL
	ts.Close()
	l.Gateway = gw

	res, err := l.Verify(context.Background(), "111", txRef, user.ID)
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if res.Verified {
		t.Fatalf("unreachable gateway must never grant a subscription")
	}

	p := loadPayment(t, db, txRef)
	if p.Status != models.PaymentFailed {
		t.Fatalf("payment status = %q, want failed", p.Status)
	}
	if !strings.Contains(p.RawJSON, "gateway unreachable") {
		t.Fatalf("audit payload missing, got %q", p.RawJSON)
	}
	if u := loadUser(t, db, user.ID); u.ProUntil != nil {
		t.Fatalf("pro_until = %v, want untouched", u.ProUntil)
	}
}

func TestVerifyFailedPaymentCanRecover(t *testing.T) {
	db := testdb.Open(t)
	user := createUser(t, db)
	l := newTestLedger(t, db, nil)

	txRef, _ := l.CreateTxRef(context.Background(), user.ID)

	l.Gateway = gatewayReturning(t, verifyBody("success", txRef, testAmount, testCurrency, "pending"))
	if _, err := l.Verify(context.Background(), "111", txRef, user.ID); err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if p := loadPayment(t, db, txRef); p.Status != models.PaymentFailed {
		t.Fatalf("status = %q, want failed", p.Status)
	}

	// The same reference settles once the gateway reports it paid.
	l.Gateway = gatewayReturning(t, verifyBody("success", txRef, testAmount, testCurrency, "successful"))
	res, err := l.Verify(context.Background(), "111", txRef, user.ID)
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if !res.Verified {
		t.Fatalf("re-verification after transient failure must succeed")
	}
	if u := loadUser(t, db, user.ID); u.ProUntil == nil {
		t.Fatalf("pro_until not set after recovery")
	}
}

func TestVerifyCreatesRowForUnknownReference(t *testing.T) {
	db := testdb.Open(t)
	user := createUser(t, db)
	l := newTestLedger(t, db, nil)

	txRef := fmt.Sprintf("mj-%s-deadbeef", user.ID)
	l.Gateway = gatewayReturning(t, verifyBody("success", txRef, testAmount, testCurrency, "successful"))

	res, err := l.Verify(context.Background(), "222", txRef, user.ID)
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if !res.Verified {
		t.Fatalf("verification failed: %+v", res)
	}

	p := loadPayment(t, db, txRef)
	if p.UserID != user.ID || p.Status != models.PaymentSuccessful {
		t.Fatalf("payment = %+v", p)
	}
}

func TestVerifyWebhookPathRecoversOwnerFromReference(t *testing.T) {
	db := testdb.Open(t)
	user := createUser(t, db)
	l := newTestLedger(t, db, nil)

	txRef := fmt.Sprintf("mj-%s-cafebabe", user.ID)
	l.Gateway = gatewayReturning(t, verifyBody("success", txRef, testAmount, testCurrency, "successful"))

	// Webhook path: no session, no pre-existing row.
	res, err := l.Verify(context.Background(), "333", txRef, "")
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if !res.Verified {
		t.Fatalf("verification failed: %+v", res)
	}

	if p := loadPayment(t, db, txRef); p.UserID != user.ID {
		t.Fatalf("payment owner = %q, want %q", p.UserID, user.ID)
	}
	if u := loadUser(t, db, user.ID); u.ProUntil == nil {
		t.Fatalf("webhook verification must credit the embedded owner")
	}
}

func TestOwnerFromTxRef(t *testing.T) {
	if owner, err := OwnerFromTxRef("mj-user42-abcd1234"); err != nil || owner != "user42" {
		t.Fatalf("OwnerFromTxRef = (%q, %v)", owner, err)
	}
	for _, bad := range []string{"", "user42-abcd1234", "mj-", "mj-user42", "mj-user42-"} {
		if _, err := OwnerFromTxRef(bad); err == nil {
			t.Fatalf("OwnerFromTxRef(%q) must fail", bad)
		}
	}
}
