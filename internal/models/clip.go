package models

import (
	"time"

	"gorm.io/gorm"
)

// Clip is one AI-generated short produced from an Upload. The object lives in
// S3; playback goes through short-lived presigned URLs, never the raw key.
type Clip struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID   uint   `gorm:"index" json:"user_id"`
	UploadID uint   `gorm:"index" json:"upload_id"`
	Title    string `gorm:"type:varchar(255)" json:"title"`
	S3Key    string `gorm:"type:varchar(512)" json:"-"`

	// Relationships
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Upload Upload `gorm:"foreignKey:UploadID" json:"upload,omitempty"`
}
