package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"postapi/internal/core"
	"postapi/internal/post"
	"postapi/internal/post/posttest"
)

func newTestServer(t *testing.T) (*Server, *post.MemoryStore) {
	t.Helper()
	store := post.NewMemoryStore()
	return New(post.NewService(store), nil), store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doForm(t *testing.T, h http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListPostsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/posts", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestListPostsReturnsAll(t *testing.T) {
	srv, store := newTestServer(t)
	seeded, err := posttest.Seed(context.Background(), store, 4)
	require.NoError(t, err)

	rec := do(t, srv, http.MethodGet, "/api/posts", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.EqualValues(t, 4, gjson.Get(body, "#").Int())
	for i, p := range seeded {
		assert.Equal(t, p.ID, gjson.Get(body, strconv.Itoa(i)+".id").Int())
		assert.Equal(t, p.Content, gjson.Get(body, strconv.Itoa(i)+".content").String())
	}
}

func TestCreatePost(t *testing.T) {
	srv, store := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/posts", `{"content":"olamundo"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := rec.Body.String()
	var keys []string
	gjson.Parse(body).ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	assert.ElementsMatch(t, []string{"id", "content", "created_at", "updated_at"}, keys)
	assert.Equal(t, "olamundo", gjson.Get(body, "content").String())
	assert.LessOrEqual(t, len(gjson.Get(body, "id").Raw), 32)
	assert.Equal(t, gjson.Get(body, "created_at").String(), gjson.Get(body, "updated_at").String())

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCreatePostEchoesSuppliedOptionals(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/posts", `{"content":"x","image":"https://example.com/cat.png","username":"maria"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "https://example.com/cat.png", gjson.Get(body, "image").String())
	assert.Less(t, len(gjson.Get(body, "image").String()), 255)
	assert.Equal(t, "maria", gjson.Get(body, "username").String())
}

func TestCreatePostErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantType   string
	}{
		{name: "missing content", body: `{}`, wantStatus: http.StatusUnprocessableEntity, wantType: "validation_error"},
		{name: "empty content", body: `{"content":""}`, wantStatus: http.StatusUnprocessableEntity, wantType: "validation_error"},
		{name: "malformed json", body: `{"content":`, wantStatus: http.StatusBadRequest, wantType: "invalid_request_error"},
		{name: "wrong type", body: `{"content":42}`, wantStatus: http.StatusBadRequest, wantType: "invalid_request_error"},
		{
			name:       "username too long",
			body:       `{"content":"x","username":"` + strings.Repeat("a", 33) + `"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t)

			rec := do(t, srv, http.MethodPost, "/api/posts", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantType, gjson.Get(rec.Body.String(), "error.type").String())
		})
	}
}

func TestShowPost(t *testing.T) {
	srv, store := newTestServer(t)
	seeded, err := posttest.Seed(context.Background(), store, 1)
	require.NoError(t, err)

	rec := do(t, srv, http.MethodGet, "/api/posts/"+strconv.FormatInt(seeded[0].ID, 10), "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, seeded[0].Content, gjson.Get(body, "content").String())
	assert.Equal(t, "anon", gjson.Get(body, "username").String())
	assert.True(t, gjson.Get(body, "image").Exists())
	assert.Equal(t, gjson.Null, gjson.Get(body, "image").Type)
}

func TestShowPostNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, id := range []string{"olamundozilho", "999", "0", "-1"} {
		t.Run(id, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, "/api/posts/"+id, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "not_found_error", gjson.Get(rec.Body.String(), "error.type").String())
		})
	}
}

func TestUpdatePost(t *testing.T) {
	srv, store := newTestServer(t)
	p := posttest.NewPost(posttest.WithTime(core.Now().Add(-time.Minute)))
	require.NoError(t, store.Create(context.Background(), p))
	target := "/api/posts/" + strconv.FormatInt(p.ID, 10)

	rec := do(t, srv, http.MethodPut, target, `{"content":"Post editado"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "Post editado", gjson.Get(body, "content").String())
	assert.NotEqual(t, p.Content, gjson.Get(body, "content").String())
	assert.NotEqual(t, gjson.Get(body, "created_at").String(), gjson.Get(body, "updated_at").String())

	rec = do(t, srv, http.MethodGet, target, "")
	assert.Equal(t, "Post editado", gjson.Get(rec.Body.String(), "content").String())
}

func TestUpdatePostErrors(t *testing.T) {
	srv, store := newTestServer(t)
	seeded, err := posttest.Seed(context.Background(), store, 1)
	require.NoError(t, err)
	target := "/api/posts/" + strconv.FormatInt(seeded[0].ID, 10)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPut, "/api/posts/999", `{"content":"x"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPut, "/api/posts/999", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPut, "/api/posts/999", `{"content":""}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPut, "/api/posts/olamundozilho", `{"content":"x"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, srv, http.MethodPut, target, `{"content":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPut, target, `{"content":`).Code)
}

func TestCreatePostForm(t *testing.T) {
	srv, store := newTestServer(t)

	rec := doForm(t, srv, http.MethodPost, "/api/posts", url.Values{"content": {"!tchau mundo"}})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "!tchau mundo", gjson.Get(body, "content").String())
	assert.False(t, gjson.Get(body, "username").Exists())
	assert.False(t, gjson.Get(body, "image").Exists())

	rec = doForm(t, srv, http.MethodPost, "/api/posts", url.Values{
		"content":  {"com imagem"},
		"username": {"joao"},
		"image":    {"cat.png"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body = rec.Body.String()
	assert.Equal(t, "joao", gjson.Get(body, "username").String())
	assert.Equal(t, "cat.png", gjson.Get(body, "image").String())

	rec = doForm(t, srv, http.MethodPost, "/api/posts", url.Values{"image": {"cat.png"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestUpdatePostForm(t *testing.T) {
	srv, store := newTestServer(t)
	p := posttest.NewPost(posttest.WithImage("cat.png"))
	require.NoError(t, store.Create(context.Background(), p))
	target := "/api/posts/" + strconv.FormatInt(p.ID, 10)

	rec := doForm(t, srv, http.MethodPut, target, url.Values{"content": {"Post editado"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Post editado", gjson.Get(rec.Body.String(), "content").String())
	assert.Equal(t, "cat.png", gjson.Get(rec.Body.String(), "image").String())

	rec = doForm(t, srv, http.MethodPut, target, url.Values{"content": {"sem imagem"}, "image": {""}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, gjson.Null, gjson.Get(rec.Body.String(), "image").Type)

	assert.Equal(t, http.StatusNotFound, doForm(t, srv, http.MethodPut, "/api/posts/999", url.Values{}).Code)
}

func TestDeletePost(t *testing.T) {
	srv, store := newTestServer(t)
	seeded, err := posttest.Seed(context.Background(), store, 1)
	require.NoError(t, err)
	target := "/api/posts/" + strconv.FormatInt(seeded[0].ID, 10)

	rec := do(t, srv, http.MethodDelete, target, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, target, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, target, "").Code)
}

func TestCreateThenShowScenario(t *testing.T) {
	srv, store := newTestServer(t)
	const content = "Minha primeira mensagem escrita aqui."

	rec := do(t, srv, http.MethodPost, "/api/posts", `{"content":"`+content+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := gjson.Get(rec.Body.String(), "id").String()

	rec = do(t, srv, http.MethodGet, "/api/posts/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, content, gjson.Get(body, "content").String())
	assert.Equal(t, "anon", gjson.Get(body, "username").String())
	assert.Equal(t, gjson.Null, gjson.Get(body, "image").Type)
	assert.Equal(t, gjson.Get(body, "created_at").String(), gjson.Get(body, "updated_at").String())

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

type brokenService struct{}

func (brokenService) List(context.Context) ([]*core.Post, error) {
	return nil, errors.New("disk on fire")
}
func (brokenService) Create(context.Context, *core.CreatePostRequest) (*core.Post, error) {
	return nil, errors.New("disk on fire")
}
func (brokenService) Show(context.Context, int64) (*core.Post, error) {
	return nil, errors.New("disk on fire")
}
func (brokenService) Update(context.Context, int64, *core.UpdatePostRequest) (*core.Post, error) {
	return nil, errors.New("disk on fire")
}
func (brokenService) Delete(context.Context, int64) error {
	return errors.New("disk on fire")
}

func TestUnexpectedErrorsAreHidden(t *testing.T) {
	srv := New(brokenService{}, nil)

	rec := do(t, srv, http.MethodGet, "/api/posts", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", gjson.Get(rec.Body.String(), "error.type").String())
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

func TestHealth(t *testing.T) {
	e := echo.New()
	handler := NewHandler(brokenService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.Health(c)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if gjson.Get(rec.Body.String(), "status").String() != "ok" {
		t.Errorf("expected ok status in body, got %s", rec.Body.String())
	}
}
