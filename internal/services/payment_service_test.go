package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clipper_app_echo/internal/config"
	"clipper_app_echo/internal/models"
)

var testDBSeq int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:payments%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// fakeGateway scripts the gateway's answers per order.
type fakeGateway struct {
	checkoutResult *CheckoutResult
	checkoutErr    error
	statuses       map[string]TransactionStatus
	checkErr       map[string]error
	checked        []string
	acceptAll      bool
}

func (f *fakeGateway) CreateCheckout(req CheckoutRequest) (*CheckoutResult, error) {
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return f.checkoutResult, nil
}

func (f *fakeGateway) CheckTransaction(orderID string) (*TransactionStatus, error) {
	f.checked = append(f.checked, orderID)
	if err, ok := f.checkErr[orderID]; ok {
		return nil, err
	}
	status, ok := f.statuses[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: check transaction %s: not scripted", ErrGatewayUnavailable, orderID)
	}
	return &status, nil
}

func (f *fakeGateway) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	if f.acceptAll {
		return true
	}
	return signatureKey == "valid"
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := models.User{FirebaseUID: "uid-abc123xyz", Email: "clipper@example.com", Name: "Clipper"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

func seedPayment(t *testing.T, db *gorm.DB, user *models.User, orderID string, status models.PaymentStatus) *models.Payment {
	t.Helper()
	payment := models.Payment{
		OrderID:          orderID,
		UserID:           user.ID,
		PriceID:          "small",
		Status:           status,
		Amount:           150_000,
		CreditsPurchased: 50,
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("seed payment %s: %v", orderID, err)
	}
	return &payment
}

func notification(orderID, transactionStatus string) GatewayNotification {
	return GatewayNotification{
		OrderID:           orderID,
		TransactionStatus: transactionStatus,
		StatusCode:        "200",
		GrossAmount:       "150000.00",
		SignatureKey:      "valid",
	}
}

func TestHandleNotificationSettlementGrantsCredits(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	seedPayment(t, db, user, "order-1", models.PaymentStatusPending)
	svc := NewPaymentService(db, &fakeGateway{}, config.DefaultPriceConfig())

	status, changed, err := svc.HandleNotification(context.Background(), notification("order-1", "settlement"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != models.PaymentStatusPaid || !changed {
		t.Fatalf("got status=%q changed=%v, want paid/true", status, changed)
	}

	var payment models.Payment
	if err := db.Where("order_id = ?", "order-1").First(&payment).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if payment.Status != models.PaymentStatusPaid {
		t.Errorf("payment status = %q, want paid", payment.Status)
	}
	if payment.PaidAt == nil {
		t.Error("paid_at not set")
	}

	var reloaded models.User
	if err := db.First(&reloaded, user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.Credits != 50 {
		t.Errorf("credits = %d, want 50", reloaded.Credits)
	}

	var callbacks int64
	db.Model(&models.PaymentCallbackHistory{}).Where("order_id = ?", "order-1").Count(&callbacks)
	if callbacks != 1 {
		t.Errorf("callback history rows = %d, want 1", callbacks)
	}
}

func TestHandleNotificationReplayCreditsOnce(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	seedPayment(t, db, user, "order-1", models.PaymentStatusPending)
	svc := NewPaymentService(db, &fakeGateway{}, config.DefaultPriceConfig())

	if _, changed, err := svc.HandleNotification(context.Background(), notification("order-1", "settlement")); err != nil || !changed {
		t.Fatalf("first delivery: changed=%v err=%v", changed, err)
	}
	status, changed, err := svc.HandleNotification(context.Background(), notification("order-1", "settlement"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if changed {
		t.Error("replay reported a change")
	}
	if status != models.PaymentStatusPaid {
		t.Errorf("replay status = %q, want paid", status)
	}

	var reloaded models.User
	db.First(&reloaded, user.ID)
	if reloaded.Credits != 50 {
		t.Errorf("credits = %d after replay, want 50", reloaded.Credits)
	}
}

func TestHandleNotificationRejectsBadSignature(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	seedPayment(t, db, user, "order-1", models.PaymentStatusPending)
	svc := NewPaymentService(db, &fakeGateway{}, config.DefaultPriceConfig())

	n := notification("order-1", "settlement")
	n.SignatureKey = "forged"
	_, _, err := svc.HandleNotification(context.Background(), n)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	var payment models.Payment
	db.Where("order_id = ?", "order-1").First(&payment)
	if payment.Status != models.PaymentStatusPending {
		t.Errorf("payment mutated to %q on forged signature", payment.Status)
	}
	var callbacks int64
	db.Model(&models.PaymentCallbackHistory{}).Count(&callbacks)
	if callbacks != 0 {
		t.Errorf("unauthenticated notification archived (%d rows)", callbacks)
	}
}

func TestHandleNotificationRejectsIncompletePayload(t *testing.T) {
	db := newTestDB(t)
	svc := NewPaymentService(db, &fakeGateway{}, config.DefaultPriceConfig())

	n := notification("order-1", "settlement")
	n.GrossAmount = ""
	if _, _, err := svc.HandleNotification(context.Background(), n); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestHandleNotificationUnknownOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewPaymentService(db, &fakeGateway{}, config.DefaultPriceConfig())

	_, _, err := svc.HandleNotification(context.Background(), notification("order-missing", "settlement"))
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestHandleNotificationUnknownStatus(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	seedPayment(t, db, user, "order-1", models.PaymentStatusPending)
	svc := NewPaymentService(db, &fakeGateway{}, config.DefaultPriceConfig())

	_, _, err := svc.HandleNotification(context.Background(), notification("order-1", "refund"))
	if !errors.Is(err, ErrUnknownTransactionStatus) {
		t.Fatalf("expected ErrUnknownTransactionStatus, got %v", err)
	}

	var payment models.Payment
	db.Where("order_id = ?", "order-1").First(&payment)
	if payment.Status != models.PaymentStatusPending {
		t.Errorf("payment mutated to %q on unknown status", payment.Status)
	}
}

func TestHandleNotificationChallengeHoldsPending(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	seedPayment(t, db, user, "order-1", models.PaymentStatusPending)
	svc := NewPaymentService(db, &fakeGateway{}, config.DefaultPriceConfig())

	n := notification("order-1", "capture")
	n.FraudStatus = "challenge"
	status, changed, err := svc.HandleNotification(context.Background(), n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != models.PaymentStatusPending || changed {
		t.Errorf("got status=%q changed=%v, want pending/false", status, changed)
	}

	var reloaded models.User
	db.First(&reloaded, user.ID)
	if reloaded.Credits != 0 {
		t.Errorf("credits granted (%d) while fraud review open", reloaded.Credits)
	}
}

func TestSyncUserPaymentsReconcilesCandidates(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	seedPayment(t, db, user, "order-pending", models.PaymentStatusPending)
	seedPayment(t, db, user, "order-failed", models.PaymentStatusFailed)
	seedPayment(t, db, user, "order-expired", models.PaymentStatusExpired)
	seedPayment(t, db, user, "order-paid", models.PaymentStatusPaid)

	gw := &fakeGateway{
		acceptAll: true,
		statuses: map[string]TransactionStatus{
			"order-pending": {TransactionStatus: "settlement"},
			// Dispute reversal: a declined charge later settled.
			"order-failed": {TransactionStatus: "settlement"},
		},
	}
	svc := NewPaymentService(db, gw, config.DefaultPriceConfig())

	if err := svc.SyncUserPayments(context.Background(), user.ID); err != nil {
		t.Fatalf("sync: %v", err)
	}

	for _, orderID := range gw.checked {
		if orderID == "order-expired" || orderID == "order-paid" {
			t.Errorf("terminal payment %s queried during sync", orderID)
		}
	}
	if len(gw.checked) != 2 {
		t.Errorf("gateway queried %d times, want 2", len(gw.checked))
	}

	for _, orderID := range []string{"order-pending", "order-failed"} {
		var payment models.Payment
		db.Where("order_id = ?", orderID).First(&payment)
		if payment.Status != models.PaymentStatusPaid {
			t.Errorf("%s status = %q, want paid", orderID, payment.Status)
		}
	}

	var reloaded models.User
	db.First(&reloaded, user.ID)
	if reloaded.Credits != 100 {
		t.Errorf("credits = %d, want 100", reloaded.Credits)
	}
}

func TestSyncUserPaymentsIsolatesFailures(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	seedPayment(t, db, user, "order-broken", models.PaymentStatusPending)
	seedPayment(t, db, user, "order-ok", models.PaymentStatusPending)

	gw := &fakeGateway{
		acceptAll: true,
		statuses: map[string]TransactionStatus{
			"order-ok": {TransactionStatus: "settlement"},
		},
		checkErr: map[string]error{
			"order-broken": fmt.Errorf("%w: timeout", ErrGatewayUnavailable),
		},
	}
	svc := NewPaymentService(db, gw, config.DefaultPriceConfig())

	if err := svc.SyncUserPayments(context.Background(), user.ID); err != nil {
		t.Fatalf("sync: %v", err)
	}

	var payment models.Payment
	db.Where("order_id = ?", "order-ok").First(&payment)
	if payment.Status != models.PaymentStatusPaid {
		t.Errorf("healthy payment not reconciled, status = %q", payment.Status)
	}
	payment = models.Payment{}
	db.Where("order_id = ?", "order-broken").First(&payment)
	if payment.Status != models.PaymentStatusPending {
		t.Errorf("broken payment mutated to %q", payment.Status)
	}
}

func TestApplyStatusStaleSnapshotCreditsOnce(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	payment := seedPayment(t, db, user, "order-1", models.PaymentStatusPending)
	svc := NewPaymentService(db, &fakeGateway{}, config.DefaultPriceConfig())

	// Both callers read the payment while it was still pending. The second
	// apply runs against a stale snapshot and must not grant credits again.
	stale := *payment
	if err := svc.applyStatus(context.Background(), payment, models.PaymentStatusPaid); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := svc.applyStatus(context.Background(), &stale, models.PaymentStatusPaid); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	var reloaded models.User
	db.First(&reloaded, user.ID)
	if reloaded.Credits != 50 {
		t.Errorf("credits = %d, want 50", reloaded.Credits)
	}
}

func TestCreateCheckout(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	gw := &fakeGateway{checkoutResult: &CheckoutResult{Token: "tok", RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/tok"}}
	svc := NewPaymentService(db, gw, config.DefaultPriceConfig())

	payment, err := svc.CreateCheckout(context.Background(), user, "small")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !strings.HasPrefix(payment.OrderID, "clipper-small-") {
		t.Errorf("order id %q missing tier prefix", payment.OrderID)
	}
	if !strings.HasSuffix(payment.OrderID, "-uid-ab") {
		t.Errorf("order id %q missing uid suffix", payment.OrderID)
	}
	if payment.Status != models.PaymentStatusPending {
		t.Errorf("status = %q, want pending", payment.Status)
	}
	if payment.Amount != 150_000 || payment.CreditsPurchased != 50 {
		t.Errorf("plan snapshot = %d/%d, want 150000/50", payment.Amount, payment.CreditsPurchased)
	}

	var stored models.Payment
	db.Where("order_id = ?", payment.OrderID).First(&stored)
	if stored.SnapRedirectURL != gw.checkoutResult.RedirectURL {
		t.Errorf("redirect url not persisted, got %q", stored.SnapRedirectURL)
	}
}

func TestCreateCheckoutInvalidPrice(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	svc := NewPaymentService(db, &fakeGateway{}, config.DefaultPriceConfig())

	if _, err := svc.CreateCheckout(context.Background(), user, "enterprise"); !errors.Is(err, ErrInvalidPriceID) {
		t.Fatalf("expected ErrInvalidPriceID, got %v", err)
	}

	var count int64
	db.Model(&models.Payment{}).Count(&count)
	if count != 0 {
		t.Errorf("payment row created for unknown price (%d rows)", count)
	}
}

func TestCreateCheckoutGatewayFailureMarksFailed(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	gwErr := fmt.Errorf("%w: snap 500", ErrGatewayUnavailable)
	svc := NewPaymentService(db, &fakeGateway{checkoutErr: gwErr}, config.DefaultPriceConfig())

	_, err := svc.CreateCheckout(context.Background(), user, "small")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected gateway error surfaced, got %v", err)
	}

	var payment models.Payment
	if err := db.Where("user_id = ?", user.ID).First(&payment).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.Status != models.PaymentStatusFailed {
		t.Errorf("abandoned payment status = %q, want failed", payment.Status)
	}
}
