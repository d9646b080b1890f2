package core

import (
	"bytes"
	"encoding/json"
	"time"
)

// DefaultUsername is assigned to posts created without a username.
const DefaultUsername = "anon"

const (
	// MaxUsernameLength is the inclusive upper bound for usernames, in characters.
	MaxUsernameLength = 32
	// MaxImageLength is the exclusive upper bound for image references, in characters.
	MaxImageLength = 255
)

// Post is the single persisted entity: a short message with an optional image.
type Post struct {
	ID        int64     `json:"id" example:"1"`
	Username  string    `json:"username" example:"anon"`
	Content   string    `json:"content" example:"Minha primeira mensagem escrita aqui."`
	Image     *string   `json:"image" example:"https://example.com/cat.png"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the post.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	if p.Image != nil {
		img := *p.Image
		c.Image = &img
	}
	return &c
}

// CreatePostRequest is the body accepted by POST /api/posts, either as JSON
// or as form fields.
type CreatePostRequest struct {
	Content  string  `json:"content" form:"content" example:"olamundo"`
	Image    *string `json:"image,omitempty" form:"image"`
	Username *string `json:"username,omitempty" form:"username"`
}

// UpdatePostRequest is the body accepted by PUT /api/posts/{id}.
// Image distinguishes an absent key from an explicit null, which clears it.
type UpdatePostRequest struct {
	Content  string         `json:"content" form:"content" example:"Post editado"`
	Image    NullableString `json:"image" form:"image" swaggertype:"string"`
	Username *string        `json:"username,omitempty" form:"username"`
}

// CreatedPost is the representation returned by POST /api/posts. Optional
// fields are echoed only when the caller supplied them.
type CreatedPost struct {
	ID        int64     `json:"id" example:"1"`
	Username  *string   `json:"username,omitempty"`
	Content   string    `json:"content" example:"olamundo"`
	Image     *string   `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCreatedPost shapes a freshly persisted post for the create response.
func NewCreatedPost(p *Post, req *CreatePostRequest) *CreatedPost {
	out := &CreatedPost{
		ID:        p.ID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if req != nil && req.Username != nil {
		username := p.Username
		out.Username = &username
	}
	if req != nil && req.Image != nil {
		out.Image = p.Image
	}
	return out
}

// NullableString tracks whether a JSON key was present and whether it was null.
type NullableString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// UnmarshalParam implements echo.BindUnmarshaler for form binding. A form
// field has no null, so an empty value clears the image.
func (n *NullableString) UnmarshalParam(param string) error {
	n.Set = true
	n.Value = &param
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n NullableString) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// Now returns the current UTC time at microsecond precision, the finest
// resolution every supported store round-trips exactly.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
