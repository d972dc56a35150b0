package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is a stored binary asset: an uploaded resume or a recorded
// interview response blob.
type Document struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Filename         string    `gorm:"type:text" json:"filename"`
	OriginalFileName string    `gorm:"type:text" json:"original_filename"`
	Kind             string    `gorm:"type:text" json:"kind"`
	MimeType         string    `gorm:"type:text" json:"mime_type"`
	FilePath         string    `gorm:"type:text" json:"file_path"`
	SizeBytes        int64     `gorm:"type:bigint" json:"size_bytes"`
	CreatedAt        time.Time `gorm:"type:timestamp;default:now()" json:"created_at"`
	UpdatedAt        time.Time `gorm:"type:timestamp;default:now()" json:"updated_at"`
}

func (d *Document) TableName() string {
	return "documents"
}

const (
	DocumentKindResume = "resume"
	DocumentKindMedia  = "media"
)
