package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account in the system. The row is created on the first
// authenticated request, keyed by the Firebase UID.
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	FirebaseUID string `gorm:"type:varchar(128);uniqueIndex" json:"firebase_uid"`
	Email       string `gorm:"type:varchar(255);index" json:"email"`
	Name        string `gorm:"type:varchar(255)" json:"name"`

	// Credits is the usage balance consumed by the processing pipeline.
	// Only the payment reconciler increments it, exactly once per paid
	// Payment.
	Credits int64 `gorm:"default:0" json:"credits"`

	// Relationships
	Payments []Payment `gorm:"foreignKey:UserID" json:"payments,omitempty"`
	Uploads  []Upload  `gorm:"foreignKey:UserID" json:"uploads,omitempty"`
	Clips    []Clip    `gorm:"foreignKey:UserID" json:"clips,omitempty"`
}
