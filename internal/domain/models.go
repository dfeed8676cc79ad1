// Package domain defines the persistence models for blog authors, posts and
// view receipts. These types are mapped with GORM and form the core data layer
// of the site backend.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// CTAType selects the call-to-action block rendered under a post.
type CTAType string

const (
	CTANone         CTAType = "NONE"
	CTACalculator   CTAType = "CALCULATOR"
	CTAConsultation CTAType = "CONSULTATION"
	CTANewsletter   CTAType = "NEWSLETTER"
)

// CTATypes lists every accepted CTAType.
var CTATypes = []CTAType{CTANone, CTACalculator, CTAConsultation, CTANewsletter}

// SocialLinks maps a network name ("twitter", "linkedin", ...) to a profile
// URL. It is stored as a JSON document in a text column.
type SocialLinks map[string]string

// Value implements driver.Valuer.
func (s SocialLinks) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(map[string]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *SocialLinks) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("social_links: unsupported column type")
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	out := map[string]string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*s = out
	return nil
}

// Author is a blog author. Posts reference authors by ID.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Name: display name; required and indexed for the alphabetical listing.
//   - Bio / Avatar: optional profile details.
//   - SocialLinks: optional network → URL map.
type Author struct {
	ID          string      `json:"id"                    gorm:"type:char(36);primaryKey"`
	Name        string      `json:"name"                  gorm:"type:varchar(255);not null;index:idx_authors_name"`
	Bio         *string     `json:"bio,omitempty"         gorm:"type:text"`
	Avatar      *string     `json:"avatar,omitempty"      gorm:"type:varchar(1024)"`
	SocialLinks SocialLinks `json:"socialLinks,omitempty" gorm:"type:text"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// TableName returns the database table name for Author.
func (Author) TableName() string { return "authors" }

// PostAuthor is the slim author projection embedded in post responses.
type PostAuthor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TableName maps PostAuthor onto the authors table.
func (PostAuthor) TableName() string { return "authors" }

// Post is a blog article.
//
// Invariants:
//   - Slug is unique (unique index ux_posts_slug).
//   - PublishedAt is stamped once, the first time Published becomes true,
//     and is never recomputed afterwards.
//   - Views only ever grows.
type Post struct {
	ID          string     `json:"id"                   gorm:"type:char(36);primaryKey"`
	Title       string     `json:"title"                gorm:"type:varchar(255);not null"`
	Slug        string     `json:"slug"                 gorm:"type:varchar(255);not null;uniqueIndex:ux_posts_slug"`
	Content     string     `json:"content"              gorm:"type:text;not null"`
	Excerpt     *string    `json:"excerpt,omitempty"    gorm:"type:text"`
	CoverImage  *string    `json:"coverImage,omitempty" gorm:"type:varchar(1024)"`
	CTAType     CTAType    `json:"ctaType"              gorm:"type:varchar(32);not null;default:'NONE'"`
	AuthorID    string     `json:"authorId"             gorm:"type:char(36);not null;index"`
	Published   bool       `json:"published"            gorm:"not null;default:false;index:idx_posts_published,priority:1"`
	PublishedAt *time.Time `json:"publishedAt"          gorm:"index:idx_posts_published,priority:2"`
	ReadingTime int        `json:"readingTime"          gorm:"not null;default:1"`
	Views       int64      `json:"views"                gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"createdAt"            gorm:"index"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Author is loaded on reads; deleting an author with posts is rejected.
	Author *PostAuthor `json:"author,omitempty" gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string { return "posts" }
