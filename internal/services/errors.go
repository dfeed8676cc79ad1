// Package services defines the business logic for authors, posts and view
// counting. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrAuthorNotFound indicates that the referenced author does not exist.
	ErrAuthorNotFound = errors.New("author not found")

	// ErrPostNotFound indicates that the requested post does not exist (or is
	// not published, for public reads).
	ErrPostNotFound = errors.New("post not found")

	// ErrSlugTaken is returned when another post already uses the slug.
	ErrSlugTaken = errors.New("slug already exists")

	// ErrInvalidSlug is returned when a slug normalizes to nothing.
	ErrInvalidSlug = errors.New("slug is invalid")

	// ErrInvalidInput is returned when required fields are blank after trimming.
	ErrInvalidInput = errors.New("required field is missing")
)
