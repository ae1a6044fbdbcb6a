package models

import (
	"time"

	"gorm.io/gorm"
)

// UploadStatus tracks where an upload sits in the processing queue. The
// pipeline itself is external; this service only records the hand-off and
// whatever the pipeline reports back.
type UploadStatus string

const (
	UploadStatusQueued     UploadStatus = "queued"
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusDone       UploadStatus = "done"
	UploadStatusFailed     UploadStatus = "failed"
)

// Upload is a long-form video/audio object handed to the processing pipeline.
type Upload struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID   uint         `gorm:"index" json:"user_id"`
	S3Key    string       `gorm:"type:varchar(512)" json:"s3_key"`
	Filename string       `gorm:"type:varchar(255)" json:"filename"`
	Status   UploadStatus `gorm:"type:varchar(20);default:'queued'" json:"status"`

	// Relationships
	User  User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Clips []Clip `gorm:"foreignKey:UploadID" json:"clips,omitempty"`
}
