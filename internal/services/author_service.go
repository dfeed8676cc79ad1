// Package services – AuthorService
//
// This file implements the AuthorService, which manages blog authors for the
// admin panel. It normalizes input, drops empty optional fields and
// coordinates repository operations for creating and listing authors.
package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/hesapla-backend/internal/auth"
	"github.com/tbourn/hesapla-backend/internal/domain"
)

// AuthorRepo defines the repository contract required by AuthorService.
type AuthorRepo interface {
	// CreateAuthor inserts a new author row, filling its id and timestamps.
	CreateAuthor(ctx context.Context, db *gorm.DB, a *domain.Author) error

	// ListAuthors returns all authors ordered by name ascending.
	ListAuthors(ctx context.Context, db *gorm.DB) ([]domain.Author, error)
}

// AuthorInput carries the fields accepted when creating an author.
type AuthorInput struct {
	Name        string
	Bio         *string
	Avatar      *string
	SocialLinks map[string]string
}

// AuthorService provides author listing and creation.
type AuthorService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the author repository used by this service.
	Repo AuthorRepo
}

// NewAuthorService constructs an AuthorService.
func NewAuthorService(db *gorm.DB, r AuthorRepo) *AuthorService {
	return &AuthorService{DB: db, Repo: r}
}

// List returns every author sorted by name.
func (s *AuthorService) List(ctx context.Context) ([]domain.Author, error) {
	return s.Repo.ListAuthors(ctx, s.DB)
}

// Create inserts a new author on behalf of actor. The name is required;
// blank optional fields and social links are dropped.
func (s *AuthorService) Create(ctx context.Context, actor auth.Identity, in AuthorInput) (*domain.Author, error) {
	name := normalizeText(in.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	var links domain.SocialLinks
	for k, v := range in.SocialLinks {
		k, v = strings.ToLower(strings.TrimSpace(k)), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		if links == nil {
			links = domain.SocialLinks{}
		}
		links[k] = v
	}

	a := &domain.Author{
		Name:        name,
		Bio:         optional(in.Bio),
		Avatar:      optional(in.Avatar),
		SocialLinks: links,
	}
	if err := s.Repo.CreateAuthor(ctx, s.DB, a); err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("actor", actor.Subject).
		Str("author_id", a.ID).
		Msg("author created")
	return a, nil
}
