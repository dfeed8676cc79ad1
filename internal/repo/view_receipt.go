// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides helpers for the ViewReceipt model used
// to deduplicate repeated view events carrying the same Idempotency-Key.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/hesapla-backend/internal/domain"
)

// ErrDuplicate indicates that a live receipt already exists for (slug, key).
var ErrDuplicate = errors.New("duplicate")

// GetViewReceipt returns a non-expired receipt or ErrNotFound.
func GetViewReceipt(ctx context.Context, db *gorm.DB, slug, key string, now time.Time) (*domain.ViewReceipt, error) {
	if strings.TrimSpace(slug) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.ViewReceipt
	err := db.WithContext(ctx).
		Where("slug = ? AND key = ? AND expires_at > ?", slug, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateViewReceipt records (slug, key) until now+ttl. An expired receipt for
// the same pair is replaced. It returns ErrDuplicate when a live receipt
// already exists.
func CreateViewReceipt(ctx context.Context, db *gorm.DB, slug, key string, now time.Time, ttl time.Duration) (*domain.ViewReceipt, error) {
	db = db.WithContext(ctx)
	if err := db.Where("slug = ? AND key = ? AND expires_at <= ?", slug, key, now).
		Delete(&domain.ViewReceipt{}).Error; err != nil {
		return nil, err
	}

	rec := &domain.ViewReceipt{
		ID:        uuid.NewString(),
		Slug:      slug,
		Key:       key,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.Create(rec).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredViewReceipts deletes receipts whose window has passed and
// returns how many were removed.
func PurgeExpiredViewReceipts(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.ViewReceipt{})
	return res.RowsAffected, res.Error
}

// IsUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
