// Package services – ViewService
//
// This file implements the ViewService, which counts post views. A view is a
// single atomic increment of the post's counter. When the client supplies an
// idempotency key, the increment and a receipt for (slug, key) are written in
// one transaction so that repeated fires of the same page load within the
// dedup window count once.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/hesapla-backend/internal/repo"
)

// DefaultViewDedupTTL is how long a view receipt suppresses repeats.
const DefaultViewDedupTTL = 30 * time.Minute

// errReplay aborts the transaction when a concurrent request already holds
// the receipt.
var errReplay = errors.New("view already recorded")

// ViewService implements the view counter.
type ViewService struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time
}

// NewViewService constructs a ViewService with the given dedup window.
func NewViewService(db *gorm.DB, ttl time.Duration) *ViewService {
	if ttl <= 0 {
		ttl = DefaultViewDedupTTL
	}
	return &ViewService{DB: db, TTL: ttl, Now: time.Now}
}

func (s *ViewService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Record increments the view counter of slug. With a non-empty key a repeat
// inside the dedup window is acknowledged without incrementing, reported as
// replayed=true. Unknown slugs yield ErrPostNotFound.
func (s *ViewService) Record(ctx context.Context, slug, key string) (replayed bool, err error) {
	slug = strings.TrimSpace(slug)
	key = strings.TrimSpace(key)
	if slug == "" {
		return false, ErrPostNotFound
	}

	if key == "" {
		return false, mapViewErr(repo.IncrementViews(ctx, s.DB, slug))
	}

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetViewReceipt(ctx, tx, slug, key, now); err == nil {
			return errReplay
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if err := repo.IncrementViews(ctx, tx, slug); err != nil {
			return err
		}
		if _, err := repo.CreateViewReceipt(ctx, tx, slug, key, now, s.TTL); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return errReplay
			}
			return err
		}
		return nil
	})
	if errors.Is(err, errReplay) {
		return true, nil
	}
	return false, mapViewErr(err)
}

// PurgeExpired removes receipts whose dedup window has passed.
func (s *ViewService) PurgeExpired(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredViewReceipts(ctx, s.DB, s.now())
}

func mapViewErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrPostNotFound
	}
	return err
}
