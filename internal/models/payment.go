package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentStatus is the internal four-valued payment state. Gateway statuses
// are normalized into it by the payment service; see
// services.NormalizeTransactionStatus.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
	PaymentStatusExpired PaymentStatus = "expired"
)

// Payment is one credit-pack purchase. Amount and CreditsPurchased are fixed
// from the price table at creation and never recomputed from gateway data.
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// OrderID joins this row to the gateway's transaction record. Format:
	// clipper-{tier}-{unixmilli}-{uid fragment}. The unique index turns a
	// same-millisecond collision into a loud insert failure.
	OrderID string `gorm:"type:varchar(100);uniqueIndex" json:"order_id"`
	UserID  uint   `gorm:"index" json:"user_id"`
	PriceID string `gorm:"type:varchar(50)" json:"price_id"`

	Status           PaymentStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	Amount           int64         `json:"amount"`
	CreditsPurchased int64         `json:"credits_purchased"`
	SnapRedirectURL  string        `gorm:"type:text" json:"snap_redirect_url,omitempty"`

	// PaidAt is set exactly when Status transitions to paid and cleared on
	// any other status.
	PaidAt *time.Time `json:"paid_at,omitempty"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
