// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Post model.
//
// Functions:
//
//   - CreatePost(ctx, db, post) -> error
//   - GetPost(ctx, db, id) -> *domain.Post, error
//   - GetPublishedPost(ctx, db, slug) -> *domain.Post, error
//   - ListPosts(ctx, db) -> []domain.Post, error           (admin, newest first)
//   - ListPublishedPage(ctx, db, offset, limit)            (public, by publishedAt desc)
//   - CountPublished(ctx, db) -> int64, error
//   - SlugTaken(ctx, db, slug, excludeID) -> bool, error
//   - SavePost(ctx, db, post) -> error
//   - DeletePost(ctx, db, id) -> error
//   - IncrementViews(ctx, db, slug) -> error
//
// Reads preload the slim author projection (id, name).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/hesapla-backend/internal/domain"
)

// withAuthor preloads only the author columns exposed on posts.
func withAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("Author", func(tx *gorm.DB) *gorm.DB {
		return tx.Select("id", "name")
	})
}

// CreatePost inserts p without touching associations. A missing ID is
// filled with a random UUID.
func CreatePost(ctx context.Context, db *gorm.DB, p *domain.Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	return db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

// GetPost fetches a post by id (published or not), or ErrNotFound.
func GetPost(ctx context.Context, db *gorm.DB, id string) (*domain.Post, error) {
	var p domain.Post
	err := withAuthor(db.WithContext(ctx)).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPublishedPost fetches a published post by slug, or ErrNotFound.
func GetPublishedPost(ctx context.Context, db *gorm.DB, slug string) (*domain.Post, error) {
	var p domain.Post
	err := withAuthor(db.WithContext(ctx)).
		Where("slug = ? AND published = ?", slug, true).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPosts returns every post, newest first.
func ListPosts(ctx context.Context, db *gorm.DB) ([]domain.Post, error) {
	out := []domain.Post{}
	err := withAuthor(db.WithContext(ctx)).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListPublishedPage returns a page of published posts ordered by publication
// time descending. Use CountPublished for pagination metadata.
func ListPublishedPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Post, error) {
	out := []domain.Post{}
	err := withAuthor(db.WithContext(ctx)).
		Where("published = ?", true).
		Order("published_at desc").
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountPublished returns the number of published posts.
func CountPublished(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("published = ?", true).
		Count(&total).Error
	return total, err
}

// SlugTaken reports whether a post other than excludeID already uses slug.
// Pass an empty excludeID on create.
func SlugTaken(ctx context.Context, db *gorm.DB, slug, excludeID string) (bool, error) {
	var n int64
	q := db.WithContext(ctx).Model(&domain.Post{}).Where("slug = ?", slug)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// SavePost writes every column of p (full update) without touching associations.
func SavePost(ctx context.Context, db *gorm.DB, p *domain.Post) error {
	p.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Omit(clause.Associations).Save(p).Error
}

// DeletePost removes the post with id. It returns ErrNotFound when no row
// was affected.
func DeletePost(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Post{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementViews atomically adds one to the view counter of the post with
// slug. It returns ErrNotFound when no such post exists.
func IncrementViews(ctx context.Context, db *gorm.DB, slug string) error {
	res := db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("slug = ?", slug).
		Update("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
