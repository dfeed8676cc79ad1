// Post HTTP handlers.
//
// Admin endpoints (session required):
//   - GET    /api/admin/posts        (list, newest first)
//   - POST   /api/admin/posts        (create)
//   - PUT    /api/admin/posts/{id}   (partial update)
//   - DELETE /api/admin/posts/{id}   (delete)
//
// Public endpoints:
//   - GET /api/posts          (published, paginated, ETag support)
//   - GET /api/posts/{slug}   (single published post)
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/hesapla-backend/internal/domain"
	"github.com/tbourn/hesapla-backend/internal/services"
)

// ListPosts godoc
// @ID          listPosts
// @Summary     List all posts
// @Description Returns drafts and published posts, newest first, each with its author.
// @Tags        Admin posts
// @Produce     json
// @Success     200  {object} handlers.ListPostsResponse
// @Failure     401  {object} handlers.ErrorResponse "Authentication required"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/posts [get]
func (h *Handlers) ListPosts(c *gin.Context) {
	if _, authed := actor(c); !authed {
		return
	}
	items, err := h.d.Posts.ListAll(c.Request.Context())
	if err != nil {
		internalError(c, "list_posts", err)
		return
	}
	if items == nil {
		items = []domain.Post{}
	}
	ok(c, http.StatusOK, ListPostsResponse{Posts: items})
}

// CreatePost godoc
// @ID          createPost
// @Summary     Create a post
// @Description Slug is normalized and must be unique. Reading time is derived from content.
// @Tags        Admin posts
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.CreatePostRequest  true  "Post"
// @Success     201   {object}  handlers.PostResponse
// @Failure     400   {object}  handlers.ErrorResponse "Missing field, unknown author or slug taken (code=conflict)"
// @Failure     401   {object}  handlers.ErrorResponse "Authentication required"
// @Failure     500   {object}  handlers.ErrorResponse "Internal error"
// @Router      /admin/posts [post]
func (h *Handlers) CreatePost(c *gin.Context) {
	id, authed := actor(c)
	if !authed {
		return
	}
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgBadJSON)
		return
	}
	if err := req.Validate(); err != nil {
		invalid(c, err)
		return
	}

	p, err := h.d.Posts.Create(c.Request.Context(), id, req.input())
	if err != nil {
		failPost(c, "create_post", err)
		return
	}
	ok(c, http.StatusCreated, PostResponse{Post: p})
}

// UpdatePost godoc
// @ID          updatePost
// @Summary     Update a post
// @Description Partial update. publishedAt is stamped only the first time the post is published.
// @Tags        Admin posts
// @Accept      json
// @Produce     json
// @Param       id    path      string                      true  "Post ID (UUID)"  format(uuid)
// @Param       body  body      handlers.UpdatePostRequest  true  "Changed fields"
// @Success     200   {object}  handlers.PostResponse
// @Failure     400   {object}  handlers.ErrorResponse "Bad request or slug taken (code=conflict)"
// @Failure     401   {object}  handlers.ErrorResponse "Authentication required"
// @Failure     404   {object}  handlers.ErrorResponse "Post not found"
// @Failure     500   {object}  handlers.ErrorResponse "Internal error"
// @Router      /admin/posts/{id} [put]
func (h *Handlers) UpdatePost(c *gin.Context) {
	id, authed := actor(c)
	if !authed {
		return
	}
	postID, valid := postIDParam(c)
	if !valid {
		return
	}
	var req UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgBadJSON)
		return
	}
	if err := req.Validate(); err != nil {
		invalid(c, err)
		return
	}

	p, err := h.d.Posts.Update(c.Request.Context(), id, postID, req.input())
	if err != nil {
		failPost(c, "update_post", err)
		return
	}
	ok(c, http.StatusOK, PostResponse{Post: p})
}

// DeletePost godoc
// @ID          deletePost
// @Summary     Delete a post
// @Tags        Admin posts
// @Param       id   path    string  true  "Post ID (UUID)"  format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Authentication required"
// @Failure     404  {object} handlers.ErrorResponse "Post not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/posts/{id} [delete]
func (h *Handlers) DeletePost(c *gin.Context) {
	id, authed := actor(c)
	if !authed {
		return
	}
	postID, valid := postIDParam(c)
	if !valid {
		return
	}
	if err := h.d.Posts.Delete(c.Request.Context(), id, postID); err != nil {
		failPost(c, "delete_post", err)
		return
	}
	noContent(c)
}

// ListPublishedPosts godoc
// @ID          listPublishedPosts
// @Summary     List published posts (paginated)
// @Description Newest publishedAt first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Blog
// @Produce     json
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(50) default(10)
// @Success     200  {object} handlers.PublishedPostsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /posts [get]
func (h *Handlers) ListPublishedPosts(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.d.Posts.PublishedStats(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"posts:%d:%d:%d:%d"`, count, ts, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.d.Posts.ListPublished(ctx, page, pageSize)
	if err != nil {
		internalError(c, "list_published", err)
		return
	}
	if items == nil {
		items = []domain.Post{}
	}
	ok(c, http.StatusOK, PublishedPostsResponse{
		Posts:      items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetPublishedPost godoc
// @ID          getPublishedPost
// @Summary     Get a published post
// @Tags        Blog
// @Produce     json
// @Param       slug  path      string  true  "Post slug"
// @Success     200   {object}  handlers.PostResponse
// @Failure     404   {object}  handlers.ErrorResponse "Post not found"
// @Failure     500   {object}  handlers.ErrorResponse "Internal error"
// @Router      /posts/{slug} [get]
func (h *Handlers) GetPublishedPost(c *gin.Context) {
	p, err := h.d.Posts.GetPublished(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failPost(c, "get_post", err)
		return
	}
	ok(c, http.StatusOK, PostResponse{Post: p})
}

func postIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id must be a UUID")
		return "", false
	}
	return id, true
}

// failPost maps post service errors onto the response taxonomy.
func failPost(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, services.ErrSlugTaken):
		fail(c, http.StatusBadRequest, ErrCodeConflict, "slug already exists")
	case errors.Is(err, services.ErrInvalidSlug):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "slug must contain letters or digits")
	case errors.Is(err, services.ErrAuthorNotFound):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "author not found")
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title, slug, content and authorId are required")
	case errors.Is(err, services.ErrPostNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "post not found")
	default:
		internalError(c, op, err)
	}
}
