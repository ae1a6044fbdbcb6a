package services

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"clipper_app_echo/internal/config"
	"clipper_app_echo/internal/models"
)

// transactionStatusMap covers the six statuses Midtrans reports for a Snap
// transaction. Anything outside this set is rejected rather than defaulted,
// so a gateway contract change cannot silently park payments in pending.
var transactionStatusMap = map[string]models.PaymentStatus{
	"capture":    models.PaymentStatusPaid,
	"settlement": models.PaymentStatusPaid,
	"pending":    models.PaymentStatusPending,
	"deny":       models.PaymentStatusFailed,
	"cancel":     models.PaymentStatusFailed,
	"expire":     models.PaymentStatusExpired,
}

// NormalizeTransactionStatus maps the gateway status vocabulary to the
// internal four-valued status.
func NormalizeTransactionStatus(transactionStatus, fraudStatus string) (models.PaymentStatus, error) {
	normalized, ok := transactionStatusMap[transactionStatus]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTransactionStatus, transactionStatus)
	}
	// A captured charge still under fraud review is not settled funds.
	if transactionStatus == "capture" && fraudStatus == "challenge" {
		return models.PaymentStatusPending, nil
	}
	return normalized, nil
}

// TransactionStatus is the gateway's answer to a status lookup.
type TransactionStatus struct {
	TransactionStatus string
	FraudStatus       string
}

// CheckoutRequest carries everything needed to open a hosted checkout page.
type CheckoutRequest struct {
	OrderID       string
	Amount        int64
	ItemID        string
	ItemName      string
	CustomerName  string
	CustomerEmail string
}

// CheckoutResult is the gateway's hosted checkout handle.
type CheckoutResult struct {
	Token       string
	RedirectURL string
}

// Gateway is the payment-gateway surface the reconciler depends on. The
// production implementation is MidtransService; tests swap in a fake.
type Gateway interface {
	CreateCheckout(req CheckoutRequest) (*CheckoutResult, error)
	CheckTransaction(orderID string) (*TransactionStatus, error)
	VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool
}

// MidtransService wraps the Snap (hosted checkout) and Core API (status
// lookup) clients.
type MidtransService struct {
	snapClient snap.Client
	coreClient coreapi.Client
	serverKey  string
	finishURL  string
}

// NewMidtransService builds the gateway clients from explicit configuration.
// Endpoint selection (sandbox vs production) follows cfg, not ambient env.
func NewMidtransService(cfg config.Config) *MidtransService {
	env := midtrans.Sandbox
	if cfg.MidtransIsProduction {
		env = midtrans.Production
	}

	// The SDK's shared HTTP client has no request timeout of its own;
	// bound every gateway call so a stalled lookup cannot pin a request.
	midtrans.DefaultGoHttpClient = &http.Client{Timeout: cfg.GatewayTimeout}

	var s snap.Client
	s.New(cfg.MidtransServerKey, env)
	s.Options.SetPaymentOverrideNotification(cfg.AppURL + "/api/midtrans/webhook")

	var c coreapi.Client
	c.New(cfg.MidtransServerKey, env)

	return &MidtransService{
		snapClient: s,
		coreClient: c,
		serverKey:  cfg.MidtransServerKey,
		finishURL:  cfg.AppURL + "/dashboard?payment=finished",
	}
}

// CreateCheckout opens a Snap transaction and returns the hosted checkout
// redirect URL.
func (s *MidtransService) CreateCheckout(req CheckoutRequest) (*CheckoutResult, error) {
	param := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.Amount,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.ItemID,
				Name:  req.ItemName,
				Price: req.Amount,
				Qty:   1,
			},
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
		},
		Callbacks: &snap.Callbacks{
			Finish: s.finishURL,
		},
		EnabledPayments: []snap.SnapPaymentType{
			snap.PaymentTypeCreditCard,
			snap.PaymentTypeBCAVA,
			snap.PaymentTypeBNIVA,
			snap.PaymentTypeBRIVA,
			snap.PaymentTypePermataVA,
			snap.PaymentTypeOtherVA,
			snap.PaymentTypeGopay,
			snap.PaymentTypeShopeepay,
		},
	}

	resp, snapErr := s.snapClient.CreateTransaction(param)
	if snapErr != nil {
		return nil, fmt.Errorf("%w: create transaction %s: %v", ErrGatewayUnavailable, req.OrderID, snapErr)
	}
	if resp.RedirectURL == "" {
		return nil, fmt.Errorf("%w: no redirect url for %s", ErrGatewayUnavailable, req.OrderID)
	}

	return &CheckoutResult{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// CheckTransaction queries the gateway for the current status of an order.
func (s *MidtransService) CheckTransaction(orderID string) (*TransactionStatus, error) {
	resp, apiErr := s.coreClient.CheckTransaction(orderID)
	if apiErr != nil {
		return nil, fmt.Errorf("%w: check transaction %s: %v", ErrGatewayUnavailable, orderID, apiErr)
	}
	return &TransactionStatus{
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
	}, nil
}

// VerifySignature checks a notification's signature_key:
// sha512(order_id + status_code + gross_amount + server key), hex encoded.
func (s *MidtransService) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + s.serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signatureKey)) == 1
}
