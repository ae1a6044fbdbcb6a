package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"clipper_app_echo/internal/config"
	"clipper_app_echo/internal/models"
)

// PaymentService owns checkout initiation and payment reconciliation. Both
// the webhook (push) and the billing-page sync (pull) funnel into the same
// normalize-and-apply path, so the two are commutative and idempotent with
// respect to each other.
type PaymentService struct {
	db      *gorm.DB
	gateway Gateway
	prices  map[string]config.PricePlan
}

func NewPaymentService(db *gorm.DB, gateway Gateway, prices map[string]config.PricePlan) *PaymentService {
	return &PaymentService{db: db, gateway: gateway, prices: prices}
}

// CreateCheckout opens a pending Payment for the given price tier and obtains
// a hosted checkout link from the gateway.
func (s *PaymentService) CreateCheckout(ctx context.Context, user *models.User, priceID string) (*models.Payment, error) {
	plan, ok := s.prices[priceID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriceID, priceID)
	}

	orderID := fmt.Sprintf("clipper-%s-%d-%s", priceID, time.Now().UnixMilli(), shortUID(user.FirebaseUID))

	payment := models.Payment{
		OrderID:          orderID,
		UserID:           user.ID,
		PriceID:          priceID,
		Status:           models.PaymentStatusPending,
		Amount:           plan.Amount,
		CreditsPurchased: plan.Credits,
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, fmt.Errorf("create payment %s: %w", orderID, err)
	}

	result, err := s.gateway.CreateCheckout(CheckoutRequest{
		OrderID:       orderID,
		Amount:        plan.Amount,
		ItemID:        priceID,
		ItemName:      plan.Label,
		CustomerName:  customerName(user),
		CustomerEmail: user.Email,
	})
	if err != nil {
		// Best-effort rollback. Logged so the attempt is visible, but the
		// gateway error is what the caller gets, not any failure here.
		if rbErr := s.db.WithContext(ctx).Model(&payment).
			Update("status", models.PaymentStatusFailed).Error; rbErr != nil {
			log.Printf("checkout %s: failed to mark payment failed: %v", orderID, rbErr)
		}
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&payment).
		Update("snap_redirect_url", result.RedirectURL).Error; err != nil {
		return nil, fmt.Errorf("persist redirect url for %s: %w", orderID, err)
	}
	payment.SnapRedirectURL = result.RedirectURL

	return &payment, nil
}

// GatewayNotification is the webhook payload Midtrans delivers server-to-
// server. gross_amount arrives as a string and is consumed as-is by the
// signature check.
type GatewayNotification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

// HandleNotification authenticates and applies one gateway notification.
// Returns the normalized status and whether any state changed; a replayed
// notification reports changed=false without touching the database.
func (s *PaymentService) HandleNotification(ctx context.Context, n GatewayNotification) (models.PaymentStatus, bool, error) {
	if n.OrderID == "" || n.TransactionStatus == "" || n.StatusCode == "" ||
		n.GrossAmount == "" || n.SignatureKey == "" {
		return "", false, ErrInvalidPayload
	}

	if !s.gateway.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		return "", false, fmt.Errorf("%w: order %s", ErrInvalidSignature, n.OrderID)
	}

	s.recordCallback(ctx, n)

	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("order_id = ?", n.OrderID).First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			// Expected for test/replay traffic from the gateway dashboard.
			return "", false, fmt.Errorf("%w: order %s", ErrPaymentNotFound, n.OrderID)
		}
		return "", false, fmt.Errorf("lookup payment %s: %w", n.OrderID, err)
	}

	normalized, err := NormalizeTransactionStatus(n.TransactionStatus, n.FraudStatus)
	if err != nil {
		return "", false, err
	}

	if normalized == payment.Status {
		return normalized, false, nil
	}

	if err := s.applyStatus(ctx, &payment, normalized); err != nil {
		return "", false, err
	}
	log.Printf("payment %s updated to %s", payment.OrderID, normalized)
	return normalized, true, nil
}

// SyncUserPayments reconciles the user's non-settled payments against the
// gateway. Candidates are pending and failed rows: a declined charge can
// still flip to settled through a dispute reversal, but an expired checkout
// link cannot be revived, so expired (like paid) is terminal here. Each item
// is independent; a lookup or apply failure is logged and the rest of the
// batch continues.
func (s *PaymentService) SyncUserPayments(ctx context.Context, userID uint) error {
	var candidates []models.Payment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID,
			[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusFailed}).
		Find(&candidates).Error
	if err != nil {
		return fmt.Errorf("list payments for user %d: %w", userID, err)
	}

	for i := range candidates {
		payment := &candidates[i]

		status, err := s.gateway.CheckTransaction(payment.OrderID)
		if err != nil {
			log.Printf("sync %s: status lookup failed: %v", payment.OrderID, err)
			continue
		}

		normalized, err := NormalizeTransactionStatus(status.TransactionStatus, status.FraudStatus)
		if err != nil {
			log.Printf("sync %s: %v", payment.OrderID, err)
			continue
		}

		if normalized == payment.Status {
			continue
		}

		if err := s.applyStatus(ctx, payment, normalized); err != nil {
			log.Printf("sync %s: apply %s failed: %v", payment.OrderID, normalized, err)
			continue
		}
		log.Printf("sync %s: %s -> %s", payment.OrderID, payment.Status, normalized)
	}

	return nil
}

// applyStatus writes the status transition and any credit grant as one
// transaction. The credit increment is keyed off the conditional update
// matching a not-yet-paid row, so the prior-status check happens inside the
// same transaction that grants credits: when the webhook and a pull sync
// race on the same payment, exactly one of them credits the user.
func (s *PaymentService) applyStatus(ctx context.Context, payment *models.Payment, status models.PaymentStatus) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if status != models.PaymentStatusPaid {
			return tx.Model(&models.Payment{}).
				Where("id = ?", payment.ID).
				Updates(map[string]interface{}{"status": status, "paid_at": nil}).Error
		}

		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status <> ?", payment.ID, models.PaymentStatusPaid).
			Updates(map[string]interface{}{"status": models.PaymentStatusPaid, "paid_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another path settled it first; credits were already granted.
			return nil
		}

		return tx.Model(&models.User{}).
			Where("id = ?", payment.UserID).
			Update("credits", gorm.Expr("credits + ?", payment.CreditsPurchased)).Error
	})
}

// recordCallback archives an authenticated notification. Failures only log;
// the audit trail never blocks reconciliation.
func (s *PaymentService) recordCallback(ctx context.Context, n GatewayNotification) {
	metadata, err := json.Marshal(n)
	if err != nil {
		log.Printf("callback %s: marshal failed: %v", n.OrderID, err)
		return
	}
	history := models.PaymentCallbackHistory{
		PaymentGateway: models.PaymentGatewayMidtrans,
		OrderID:        n.OrderID,
		Metadata:       metadata,
	}
	if err := s.db.WithContext(ctx).Create(&history).Error; err != nil {
		log.Printf("callback %s: record failed: %v", n.OrderID, err)
	}
}

func customerName(user *models.User) string {
	if user.Name != "" {
		return user.Name
	}
	if at := strings.Index(user.Email, "@"); at > 0 {
		return user.Email[:at]
	}
	return user.Email
}

func shortUID(uid string) string {
	if len(uid) > 6 {
		return uid[:6]
	}
	return uid
}
