package domain

import "time"

// ViewReceipt remembers that a view for (slug, key) was already counted, so
// repeated fires of the same page load do not inflate Post.Views. Receipts
// expire after a configurable window and are purged periodically.
type ViewReceipt struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Slug      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_view_slug_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_view_slug_key,priority:2"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (ViewReceipt) TableName() string { return "view_receipts" }
