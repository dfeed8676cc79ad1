package handlers

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/tbourn/hesapla-backend/internal/domain"
	"github.com/tbourn/hesapla-backend/internal/rates"
	"github.com/tbourn/hesapla-backend/internal/services"
)

//
// Session
//

// LoginRequest is the admin login payload.
type LoginRequest struct {
	Email    string `json:"email" example:"admin@example.com.tr"`
	Password string `json:"password" example:"s3cret-pass"`
}

// Validate checks the login payload.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required.Error("email is required"), is.EmailFormat, validation.Length(3, 255)),
		validation.Field(&r.Password, validation.Required.Error("password is required"), validation.Length(1, 128)),
	)
}

// SessionResponse describes the current admin session.
type SessionResponse struct {
	Email     string `json:"email" example:"admin@example.com.tr"`
	ExpiresAt string `json:"expiresAt" example:"2026-10-26T12:00:00Z"`
}

//
// Authors
//

// CreateAuthorRequest is the JSON payload for creating an author.
type CreateAuthorRequest struct {
	Name        string            `json:"name" example:"Av. Elif Yılmaz"`
	Bio         *string           `json:"bio,omitempty" example:"İş hukuku avukatı"`
	Avatar      *string           `json:"avatar,omitempty" example:"https://cdn.example.com.tr/images/2026/10/a.jpg"`
	SocialLinks map[string]string `json:"socialLinks,omitempty"`
}

// Validate checks the author payload.
func (r CreateAuthorRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required.Error("name is required"), validation.Length(1, 255)),
		validation.Field(&r.Avatar, validation.NilOrNotEmpty, is.URL),
		validation.Field(&r.SocialLinks, validation.Each(is.URL)),
	)
}

func (r CreateAuthorRequest) input() services.AuthorInput {
	return services.AuthorInput{
		Name:        r.Name,
		Bio:         r.Bio,
		Avatar:      r.Avatar,
		SocialLinks: r.SocialLinks,
	}
}

// AuthorResponse wraps a single author.
type AuthorResponse struct {
	Author *domain.Author `json:"author"`
}

// ListAuthorsResponse wraps the author list.
type ListAuthorsResponse struct {
	Authors []domain.Author `json:"authors"`
}

//
// Posts
//

// CreatePostRequest is the JSON payload for creating a post.
type CreatePostRequest struct {
	Title      string  `json:"title" example:"Kıdem tazminatı nasıl hesaplanır?"`
	Slug       string  `json:"slug" example:"kidem-tazminati-nasil-hesaplanir"`
	Content    string  `json:"content"`
	Excerpt    *string `json:"excerpt,omitempty"`
	CoverImage *string `json:"coverImage,omitempty"`
	CTAType    string  `json:"ctaType,omitempty" example:"CALCULATOR"`
	AuthorID   string  `json:"authorId" format:"uuid"`
	Published  bool    `json:"published"`
}

// Validate checks the post payload.
func (r CreatePostRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required.Error("title is required"), validation.Length(1, 255)),
		validation.Field(&r.Slug, validation.Required.Error("slug is required"), validation.Length(1, 255)),
		validation.Field(&r.Content, validation.Required.Error("content is required")),
		validation.Field(&r.AuthorID, validation.Required.Error("authorId is required"), is.UUID),
		validation.Field(&r.CoverImage, validation.NilOrNotEmpty, is.URL),
		validation.Field(&r.CTAType, validation.In(ctaValues()...).Error("ctaType is invalid")),
	)
}

func (r CreatePostRequest) input() services.CreatePostInput {
	return services.CreatePostInput{
		Title:      r.Title,
		Slug:       r.Slug,
		Content:    r.Content,
		Excerpt:    r.Excerpt,
		CoverImage: r.CoverImage,
		CTAType:    domain.CTAType(r.CTAType),
		AuthorID:   r.AuthorID,
		Published:  r.Published,
	}
}

// UpdatePostRequest is a partial update; omitted fields stay unchanged.
type UpdatePostRequest struct {
	Title      *string `json:"title,omitempty"`
	Slug       *string `json:"slug,omitempty"`
	Content    *string `json:"content,omitempty"`
	Excerpt    *string `json:"excerpt,omitempty"`
	CoverImage *string `json:"coverImage,omitempty"`
	CTAType    *string `json:"ctaType,omitempty"`
	AuthorID   *string `json:"authorId,omitempty"`
	Published  *bool   `json:"published,omitempty"`
}

// Validate checks the fields that are present.
func (r UpdatePostRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty.Error("title cannot be blank"), validation.Length(1, 255)),
		validation.Field(&r.Slug, validation.NilOrNotEmpty.Error("slug cannot be blank"), validation.Length(1, 255)),
		validation.Field(&r.Content, validation.NilOrNotEmpty.Error("content cannot be blank")),
		validation.Field(&r.AuthorID, validation.NilOrNotEmpty, is.UUID),
		validation.Field(&r.CTAType, validation.NilOrNotEmpty, validation.In(ctaValues()...).Error("ctaType is invalid")),
	)
}

func (r UpdatePostRequest) input() services.UpdatePostInput {
	in := services.UpdatePostInput{
		Title:      r.Title,
		Slug:       r.Slug,
		Content:    r.Content,
		Excerpt:    r.Excerpt,
		CoverImage: r.CoverImage,
		AuthorID:   r.AuthorID,
		Published:  r.Published,
	}
	if r.CTAType != nil {
		t := domain.CTAType(*r.CTAType)
		in.CTAType = &t
	}
	return in
}

// PostResponse wraps a single post.
type PostResponse struct {
	Post *domain.Post `json:"post"`
}

// ListPostsResponse wraps the admin post list.
type ListPostsResponse struct {
	Posts []domain.Post `json:"posts"`
}

// PublishedPostsResponse wraps a page of published posts.
type PublishedPostsResponse struct {
	Posts      []domain.Post `json:"posts"`
	Pagination Pagination    `json:"pagination"`
}

//
// Views, uploads, rates
//

// ViewResponse acknowledges a recorded view.
type ViewResponse struct {
	Success bool `json:"success" example:"true"`
}

// UploadResponse carries the public URL of an uploaded image.
type UploadResponse struct {
	URL string `json:"url" example:"https://cdn.example.com.tr/images/2026/10/0b6c.jpg"`
}

// RatesResponse is the calculator-facing exchange-rate snapshot.
type RatesResponse = rates.Snapshot

func ctaValues() []any {
	out := make([]any, 0, len(domain.CTATypes))
	for _, t := range domain.CTATypes {
		out = append(out, string(t))
	}
	return out
}
