// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Author model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When an author is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/hesapla-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateAuthor inserts a. A missing ID is filled with a random UUID and
// CreatedAt is set to UTC now.
func CreateAuthor(ctx context.Context, db *gorm.DB, a *domain.Author) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	return db.WithContext(ctx).Create(a).Error
}

// ListAuthors returns every author ordered by name ascending. It returns an
// empty slice when there are none.
func ListAuthors(ctx context.Context, db *gorm.DB) ([]domain.Author, error) {
	out := []domain.Author{}
	err := db.WithContext(ctx).
		Order("name asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// GetAuthor fetches a single author by id, or ErrNotFound.
func GetAuthor(ctx context.Context, db *gorm.DB, id string) (*domain.Author, error) {
	var a domain.Author
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
