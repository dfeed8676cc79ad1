// Package services – PostService
//
// This file implements the PostService, which governs the post lifecycle for
// the admin panel and the public blog. It normalizes slugs, derives reading
// time from content, stamps publishedAt exactly once and keeps slugs unique.
//
// Slug uniqueness is checked and the row written inside one transaction; a
// unique-index violation raised by a concurrent writer is mapped to
// ErrSlugTaken as well.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/hesapla-backend/internal/auth"
	"github.com/tbourn/hesapla-backend/internal/domain"
	"github.com/tbourn/hesapla-backend/internal/repo"
	"github.com/tbourn/hesapla-backend/internal/utils"
)

// CreatePostInput carries the fields accepted when creating a post.
type CreatePostInput struct {
	Title      string
	Slug       string
	Content    string
	Excerpt    *string
	CoverImage *string
	CTAType    domain.CTAType
	AuthorID   string
	Published  bool
}

// UpdatePostInput is a partial update; nil fields are left unchanged.
type UpdatePostInput struct {
	Title      *string
	Slug       *string
	Content    *string
	Excerpt    *string
	CoverImage *string
	CTAType    *domain.CTAType
	AuthorID   *string
	Published  *bool
}

// PostService implements the post use-cases.
type PostService struct {
	// DB is the database handle; each write opens its own transaction.
	DB *gorm.DB
	// WPM is the reading speed used for ReadingTime.
	WPM int
	// Now is the clock used for publishedAt stamps.
	Now func() time.Time
}

// NewPostService constructs a PostService reading at wpm words per minute.
func NewPostService(db *gorm.DB, wpm int) *PostService {
	if wpm <= 0 {
		wpm = DefaultWPM
	}
	return &PostService{DB: db, WPM: wpm, Now: time.Now}
}

func (s *PostService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Create validates and inserts a post authored by in.AuthorID.
func (s *PostService) Create(ctx context.Context, actor auth.Identity, in CreatePostInput) (*domain.Post, error) {
	title := normalizeText(in.Title)
	if title == "" || in.Content == "" || in.AuthorID == "" {
		return nil, ErrInvalidInput
	}
	slug := NormalizeSlug(in.Slug)
	if slug == "" {
		return nil, ErrInvalidSlug
	}
	cta := in.CTAType
	if cta == "" {
		cta = domain.CTANone
	}

	now := s.now()
	p := &domain.Post{
		Title:       title,
		Slug:        slug,
		Content:     in.Content,
		Excerpt:     optional(in.Excerpt),
		CoverImage:  optional(in.CoverImage),
		CTAType:     cta,
		AuthorID:    in.AuthorID,
		Published:   in.Published,
		ReadingTime: ReadingTime(in.Content, s.WPM),
		CreatedAt:   now,
	}
	if in.Published {
		p.PublishedAt = &now
	}

	var out *domain.Post
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureAuthor(ctx, tx, p.AuthorID); err != nil {
			return err
		}
		if err := ensureSlugFree(ctx, tx, p.Slug, ""); err != nil {
			return err
		}
		if err := repo.CreatePost(ctx, tx, p); err != nil {
			if repo.IsUniqueViolation(err) {
				return ErrSlugTaken
			}
			return err
		}
		var err error
		out, err = repo.GetPost(ctx, tx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("actor", actor.Subject).
		Str("post_id", out.ID).
		Str("slug", out.Slug).
		Bool("published", out.Published).
		Msg("post created")
	return out, nil
}

// Update applies a partial update to post id.
//
// publishedAt is stamped the first time the post becomes published and is
// never recomputed afterwards, even if the post is unpublished and published
// again. Reading time follows content.
func (s *PostService) Update(ctx context.Context, actor auth.Identity, id string, in UpdatePostInput) (*domain.Post, error) {
	var out *domain.Post
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.GetPost(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrPostNotFound
			}
			return err
		}
		p.Author = nil

		if in.Title != nil {
			t := normalizeText(*in.Title)
			if t == "" {
				return ErrInvalidInput
			}
			p.Title = t
		}
		if in.Slug != nil {
			slug := NormalizeSlug(*in.Slug)
			if slug == "" {
				return ErrInvalidSlug
			}
			if slug != p.Slug {
				if err := ensureSlugFree(ctx, tx, slug, p.ID); err != nil {
					return err
				}
				p.Slug = slug
			}
		}
		if in.Content != nil {
			if *in.Content == "" {
				return ErrInvalidInput
			}
			p.Content = *in.Content
			p.ReadingTime = ReadingTime(p.Content, s.WPM)
		}
		if in.Excerpt != nil {
			p.Excerpt = optional(in.Excerpt)
		}
		if in.CoverImage != nil {
			p.CoverImage = optional(in.CoverImage)
		}
		if in.CTAType != nil {
			p.CTAType = *in.CTAType
			if p.CTAType == "" {
				p.CTAType = domain.CTANone
			}
		}
		if in.AuthorID != nil && *in.AuthorID != p.AuthorID {
			if err := ensureAuthor(ctx, tx, *in.AuthorID); err != nil {
				return err
			}
			p.AuthorID = *in.AuthorID
		}
		if in.Published != nil {
			if *in.Published && p.PublishedAt == nil {
				now := s.now()
				p.PublishedAt = &now
			}
			p.Published = *in.Published
		}

		if err := repo.SavePost(ctx, tx, p); err != nil {
			if repo.IsUniqueViolation(err) {
				return ErrSlugTaken
			}
			return err
		}
		out, err = repo.GetPost(ctx, tx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("actor", actor.Subject).
		Str("post_id", out.ID).
		Msg("post updated")
	return out, nil
}

// Delete removes post id.
func (s *PostService) Delete(ctx context.Context, actor auth.Identity, id string) error {
	if err := repo.DeletePost(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPostNotFound
		}
		return err
	}
	log.Ctx(ctx).Info().Str("actor", actor.Subject).Str("post_id", id).Msg("post deleted")
	return nil
}

// ListAll returns every post, newest first, for the admin panel.
func (s *PostService) ListAll(ctx context.Context) ([]domain.Post, error) {
	return repo.ListPosts(ctx, s.DB)
}

// ListPublished returns a page of published posts and the total count.
// page and pageSize are clamped by utils.NewWindow.
func (s *PostService) ListPublished(ctx context.Context, page, pageSize int) ([]domain.Post, int64, error) {
	w := utils.NewWindow(page, pageSize)

	total, err := repo.CountPublished(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Post{}, 0, nil
	}
	items, err := repo.ListPublishedPage(ctx, s.DB, w.Offset(), w.PageSize)
	return items, total, err
}

// GetPublished returns the published post with slug.
func (s *PostService) GetPublished(ctx context.Context, slug string) (*domain.Post, error) {
	p, err := repo.GetPublishedPost(ctx, s.DB, slug)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return p, nil
}

// PublishedStats returns the published post count and the latest update time,
// used by handlers to build a list ETag.
func (s *PostService) PublishedStats(ctx context.Context) (int64, *time.Time, error) {
	return repo.PublishedPostsStats(ctx, s.DB)
}

func ensureAuthor(ctx context.Context, tx *gorm.DB, id string) error {
	if _, err := repo.GetAuthor(ctx, tx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrAuthorNotFound
		}
		return err
	}
	return nil
}

func ensureSlugFree(ctx context.Context, tx *gorm.DB, slug, excludeID string) error {
	taken, err := repo.SlugTaken(ctx, tx, slug, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrSlugTaken
	}
	return nil
}
