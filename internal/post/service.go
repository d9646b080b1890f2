package post

import (
	"context"
	"errors"
	"time"

	"postapi/internal/core"
)

// Operation names reported to an OperationObserver.
const (
	OperationList   = "list"
	OperationCreate = "create"
	OperationShow   = "show"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// Operation results reported to an OperationObserver.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

// OperationObserver receives one call per completed service operation.
type OperationObserver interface {
	ObservePostOperation(operation, result string)
}

// Service applies validation, defaults and timestamps on top of a Store.
// Errors returned by Service methods are *core.APIError values.
type Service struct {
	store    Store
	now      func() time.Time
	observer OperationObserver
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source used for created_at and updated_at.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver registers an observer for operation outcomes.
func WithObserver(o OperationObserver) ServiceOption {
	return func(s *Service) {
		s.observer = o
	}
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		now:   core.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every post in creation order. The slice is never nil.
func (s *Service) List(ctx context.Context) ([]*core.Post, error) {
	posts, err := s.store.List(ctx)
	if err != nil {
		return nil, s.fail(OperationList, err)
	}
	if posts == nil {
		posts = []*core.Post{}
	}
	s.observe(OperationList, ResultOK)
	return posts, nil
}

// Create validates req and persists a new post.
func (s *Service) Create(ctx context.Context, req *core.CreatePostRequest) (*core.Post, error) {
	if req == nil {
		return nil, s.fail(OperationCreate, core.NewInvalidRequestError("request body is required", nil))
	}
	if err := validateContent(req.Content); err != nil {
		return nil, s.fail(OperationCreate, err)
	}
	username, err := normalizeUsername(req.Username)
	if err != nil {
		return nil, s.fail(OperationCreate, err)
	}
	image, err := normalizeImage(req.Image)
	if err != nil {
		return nil, s.fail(OperationCreate, err)
	}

	now := s.now()
	p := &core.Post{
		Username:  username,
		Content:   req.Content,
		Image:     image,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, s.fail(OperationCreate, err)
	}
	s.observe(OperationCreate, ResultOK)
	return p, nil
}

// Show returns the post with the given id.
func (s *Service) Show(ctx context.Context, id int64) (*core.Post, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(OperationShow, err)
	}
	s.observe(OperationShow, ResultOK)
	return p, nil
}

// Update applies req to an existing post and refreshes updated_at.
// Username and image are only changed when present in req.
func (s *Service) Update(ctx context.Context, id int64, req *core.UpdatePostRequest) (*core.Post, error) {
	if req == nil {
		return nil, s.fail(OperationUpdate, core.NewInvalidRequestError("request body is required", nil))
	}

	// An unknown id is reported before anything wrong with the body.
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail(OperationUpdate, err)
	}
	if err := validateContent(req.Content); err != nil {
		return nil, s.fail(OperationUpdate, err)
	}

	p.Content = req.Content
	if req.Username != nil {
		username, err := normalizeUsername(req.Username)
		if err != nil {
			return nil, s.fail(OperationUpdate, err)
		}
		p.Username = username
	}
	if req.Image.Set {
		image, err := normalizeImage(req.Image.Value)
		if err != nil {
			return nil, s.fail(OperationUpdate, err)
		}
		p.Image = image
	}

	// updated_at must never move behind created_at, even with a skewed clock.
	now := s.now()
	if now.Before(p.CreatedAt) {
		now = p.CreatedAt
	}
	p.UpdatedAt = now

	if err := s.store.Update(ctx, p); err != nil {
		return nil, s.fail(OperationUpdate, err)
	}
	s.observe(OperationUpdate, ResultOK)
	return p, nil
}

// Delete removes the post with the given id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return s.fail(OperationDelete, err)
	}
	s.observe(OperationDelete, ResultOK)
	return nil
}

// Count returns the number of stored posts.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, core.NewInternalError(err)
	}
	return n, nil
}

// fail converts err into a *core.APIError and records the outcome.
func (s *Service) fail(operation string, err error) error {
	apiErr := toAPIError(err)
	switch apiErr.Type {
	case core.ErrorTypeNotFound:
		s.observe(operation, ResultNotFound)
	case core.ErrorTypeValidation, core.ErrorTypeInvalidRequest:
		s.observe(operation, ResultInvalid)
	default:
		s.observe(operation, ResultError)
	}
	return apiErr
}

func (s *Service) observe(operation, result string) {
	if s.observer != nil {
		s.observer.ObservePostOperation(operation, result)
	}
}

func toAPIError(err error) *core.APIError {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, ErrNotFound) {
		return core.NewNotFoundError("post not found")
	}
	return core.NewInternalError(err)
}
