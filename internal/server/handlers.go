// Package server provides HTTP handlers and server setup for the posts API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"postapi/internal/core"
	"postapi/internal/post"
)

// PostService is the set of post operations exposed over HTTP.
type PostService interface {
	List(ctx context.Context) ([]*core.Post, error)
	Create(ctx context.Context, req *core.CreatePostRequest) (*core.Post, error)
	Show(ctx context.Context, id int64) (*core.Post, error)
	Update(ctx context.Context, id int64, req *core.UpdatePostRequest) (*core.Post, error)
	Delete(ctx context.Context, id int64) error
}

// Handler holds the HTTP handlers
type Handler struct {
	posts PostService
}

// NewHandler creates a new handler backed by the given post service
func NewHandler(posts PostService) *Handler {
	return &Handler{
		posts: posts,
	}
}

// ListPosts handles GET /api/posts
//
//	@Summary	List posts
//	@Tags		posts
//	@Produce	json
//	@Success	200	{array}		core.Post
//	@Failure	500	{object}	errorResponse
//	@Router		/api/posts [get]
func (h *Handler) ListPosts(c echo.Context) error {
	posts, err := h.posts.List(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, posts)
}

// CreatePost handles POST /api/posts
//
//	@Summary	Create a post
//	@Tags		posts
//	@Accept		json,x-www-form-urlencoded
//	@Produce	json
//	@Param		post	body		core.CreatePostRequest	true	"Post to create"
//	@Success	201		{object}	core.CreatedPost
//	@Failure	400		{object}	errorResponse
//	@Failure	422		{object}	errorResponse
//	@Router		/api/posts [post]
func (h *Handler) CreatePost(c echo.Context) error {
	var req core.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+bindMessage(err), err))
	}

	p, err := h.posts.Create(c.Request().Context(), &req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusCreated, core.NewCreatedPost(p, &req))
}

// ShowPost handles GET /api/posts/:id
//
//	@Summary	Show a post
//	@Tags		posts
//	@Produce	json
//	@Param		id	path		int	true	"Post ID"
//	@Success	200	{object}	core.Post
//	@Failure	404	{object}	errorResponse
//	@Router		/api/posts/{id} [get]
func (h *Handler) ShowPost(c echo.Context) error {
	id, err := post.ParseID(c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}

	p, err := h.posts.Show(c.Request().Context(), id)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// UpdatePost handles PUT /api/posts/:id
//
//	@Summary	Update a post
//	@Tags		posts
//	@Accept		json,x-www-form-urlencoded
//	@Produce	json
//	@Param		id		path		int						true	"Post ID"
//	@Param		post	body		core.UpdatePostRequest	true	"Fields to change"
//	@Success	200		{object}	core.Post
//	@Failure	400		{object}	errorResponse
//	@Failure	404		{object}	errorResponse
//	@Failure	422		{object}	errorResponse
//	@Router		/api/posts/{id} [put]
func (h *Handler) UpdatePost(c echo.Context) error {
	id, err := post.ParseID(c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}

	var req core.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+bindMessage(err), err))
	}

	p, err := h.posts.Update(c.Request().Context(), id, &req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// DeletePost handles DELETE /api/posts/:id
//
//	@Summary	Delete a post
//	@Tags		posts
//	@Param		id	path	int	true	"Post ID"
//	@Success	204
//	@Failure	404	{object}	errorResponse
//	@Router		/api/posts/{id} [delete]
func (h *Handler) DeletePost(c echo.Context) error {
	id, err := post.ParseID(c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}

	if err := h.posts.Delete(c.Request().Context(), id); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Health handles GET /health
//
//	@Summary	Liveness probe
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/health [get]
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// errorResponse documents the error envelope for swag.
type errorResponse struct {
	Error struct {
		Type    string `json:"type" example:"not_found_error"`
		Message string `json:"message" example:"post not found"`
		Field   string `json:"field,omitempty"`
	} `json:"error"`
}

// handleError converts API errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) {
		apiErr = core.NewInternalError(err)
	}

	status := apiErr.HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"error", err,
		)
	}
	return c.JSON(status, apiErr.ToJSON())
}

func bindMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
	}
	return err.Error()
}
