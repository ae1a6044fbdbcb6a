package services

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"testing"

	"clipper_app_echo/internal/models"
)

func TestNormalizeTransactionStatus(t *testing.T) {
	tests := []struct {
		name              string
		transactionStatus string
		fraudStatus       string
		want              models.PaymentStatus
		wantErr           bool
	}{
		{"settlement", "settlement", "", models.PaymentStatusPaid, false},
		{"capture accepted", "capture", "accept", models.PaymentStatusPaid, false},
		{"capture no fraud status", "capture", "", models.PaymentStatusPaid, false},
		{"capture under review", "capture", "challenge", models.PaymentStatusPending, false},
		{"pending", "pending", "", models.PaymentStatusPending, false},
		{"deny", "deny", "", models.PaymentStatusFailed, false},
		{"cancel", "cancel", "", models.PaymentStatusFailed, false},
		{"expire", "expire", "", models.PaymentStatusExpired, false},
		{"unknown status", "refund", "", "", true},
		{"empty status", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTransactionStatus(tt.transactionStatus, tt.fraudStatus)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got status %q", tt.transactionStatus, got)
				}
				if !errors.Is(err, ErrUnknownTransactionStatus) {
					t.Errorf("expected ErrUnknownTransactionStatus, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVerifySignature(t *testing.T) {
	svc := &MidtransService{serverKey: "test-server-key"}

	orderID := "clipper-small-1700000000000-abc123"
	statusCode := "200"
	grossAmount := "150000.00"

	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + "test-server-key"))
	valid := hex.EncodeToString(sum[:])

	if !svc.VerifySignature(orderID, statusCode, grossAmount, valid) {
		t.Error("valid signature rejected")
	}
	if svc.VerifySignature(orderID, statusCode, grossAmount, "deadbeef") {
		t.Error("bogus signature accepted")
	}
	if svc.VerifySignature(orderID, statusCode, "150001.00", valid) {
		t.Error("signature accepted after gross amount tamper")
	}
	if svc.VerifySignature(orderID, statusCode, grossAmount, "") {
		t.Error("empty signature accepted")
	}
}
