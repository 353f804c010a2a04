package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentItem is a stored digital asset sellable through a listing. The object
// itself lives in GCS under StorageKey; purchases copy it into the buyer's
// namespace rather than sharing the seller's object.
type ContentItem struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID     uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`
	Title       string    `gorm:"column:title;not null"`
	ContentType string    `gorm:"column:content_type;not null"`
	StorageKey  string    `gorm:"column:storage_key;not null"`
	SizeBytes   int64     `gorm:"column:size_bytes;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
