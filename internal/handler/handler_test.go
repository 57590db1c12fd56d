package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/blogspace/internal/auth"
	"github.com/sakif/blogspace/internal/handler"
	"github.com/sakif/blogspace/internal/model"
	"github.com/sakif/blogspace/internal/repository/sqlite"
	"github.com/sakif/blogspace/internal/service"
)

// testAPI is the HTTP surface over a private in-memory database.
type testAPI struct {
	t      *testing.T
	router http.Handler
	tokens *auth.TokenService
	users  *service.AuthService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	accounts := service.NewAuthService(db, tokens, auth.NewPasswordServiceForTest(4), logger)
	posts := service.NewPostService(db, nil, service.OwnerPolicy, logger)
	comments := service.NewCommentService(db, logger)

	postHandler := handler.NewPostHandler(posts, logger)
	commentHandler := handler.NewCommentHandler(comments, logger)
	authHandler := handler.NewAuthHandler(accounts, nil, tokens, false, logger)
	healthHandler := handler.NewHealthHandler(db, logger)

	r := chi.NewRouter()
	r.Use(auth.OptionalAuth(tokens))
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Post("/auth/register", authHandler.HandleRegister)
	r.Post("/auth/login", authHandler.HandleLogin)
	r.Post("/auth/logout", authHandler.HandleLogout)
	r.Route("/api", func(r chi.Router) {
		r.Get("/posts", postHandler.HandleList)
		r.Post("/posts", postHandler.HandleCreate)
		r.Get("/posts/{id}", postHandler.HandleGet)
		r.Put("/posts/{id}", postHandler.HandleUpdate)
		r.Delete("/posts/{id}", postHandler.HandleDelete)
		r.Get("/posts/{id}/comments", commentHandler.HandleList)
		r.Post("/posts/{id}/comments", commentHandler.HandleCreate)
		r.Get("/categories", postHandler.HandleCategories)
		r.With(auth.RequireAuth(tokens)).Get("/me", authHandler.HandleMe)
	})

	return &testAPI{t: t, router: r, tokens: tokens, users: accounts}
}

// do sends a JSON request. token may be empty for anonymous calls.
func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// signUp registers and logs in, returning the session token.
func (a *testAPI) signUp(name, email string) string {
	a.t.Helper()
	rr := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	})
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = a.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "secret123",
	})
	require.Equal(a.t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp.Token
}

func (a *testAPI) createPost(token, title, content, category string) model.Post {
	a.t.Helper()
	rr := a.do(http.MethodPost, "/api/posts", token, map[string]string{
		"title": title, "content": content, "category": category,
	})
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())
	var post model.Post
	require.NoError(a.t, json.NewDecoder(rr.Body).Decode(&post))
	return post
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

// =========================================================================
// POSTS
// =========================================================================

func TestPostHandlers_Scenario(t *testing.T) {
	api := newTestAPI(t)
	user1 := api.signUp("User One", "one@example.com")
	user2 := api.signUp("User Two", "two@example.com")

	post := api.createPost(user1, "A", "B", "Tech")
	assert.Equal(t, int64(1), post.ID)
	assert.Equal(t, "User One", post.AuthorName)

	rr := api.do(http.MethodPut, "/api/posts/1", user2, map[string]string{"title": "X", "content": "B", "category": "Tech"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "forbidden", decodeError(t, rr).Error)

	rr = api.do(http.MethodPut, "/api/posts/1", user1, map[string]string{"title": "A2", "content": "B", "category": "Tech"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated model.Post
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&updated))
	assert.Equal(t, "A2", updated.Title)

	rr = api.do(http.MethodDelete, "/api/posts/1", user1, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Post deleted successfully"}`, rr.Body.String())

	rr = api.do(http.MethodGet, "/api/posts/1", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decodeError(t, rr).Error)
}

func TestPostHandlers_CreateErrors(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp("Ada", "ada@example.com")

	t.Run("anonymous is 401 even with a bad body", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/api/posts", "", `{"nope":`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "unauthorized", decodeError(t, rr).Error)
	})

	t.Run("invalid token is anonymous", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/api/posts", "not-a-jwt", map[string]string{"title": "t"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("anonymous update is 401 before the id or body is looked at", func(t *testing.T) {
		rr := api.do(http.MethodPut, "/api/posts/abc", "", `{"nope":`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, decodeError(t, rr).Message, "edit a post")
	})

	t.Run("missing fields are listed", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/api/posts", token, map[string]string{"title": "t"})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeError(t, rr)
		assert.Equal(t, "validation_error", resp.Error)
		assert.Equal(t, []string{"content", "category"}, resp.Fields)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/api/posts", token, `{"title":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/api/posts", token, `{"title":"t","content":"c","category":"go","userId":99}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestPostHandlers_GetErrors(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(http.MethodGet, "/api/posts/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(http.MethodGet, "/api/posts/12345", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPostHandlers_GetIncludesComments(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp("Ada", "ada@example.com")
	post := api.createPost(token, "t", "c", "go")

	rr := api.do(http.MethodGet, "/api/posts/1", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"comments":[]`)

	rr = api.do(http.MethodPost, "/api/posts/1/comments", "", map[string]string{"name": "Bob", "comment": "hi"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = api.do(http.MethodGet, "/api/posts/1", "", nil)
	var got model.Post
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, post.ID, got.ID)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "hi", got.Comments[0].Body)
	assert.Equal(t, 1, got.CommentCount)
}

func TestPostHandlers_List(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp("Ada", "ada@example.com")

	long := "<p>" + strings.Repeat("word ", 450) + "</p>"
	for i := range 12 {
		category := "Tech"
		if i%3 == 0 {
			category = "Food"
		}
		api.createPost(token, "post", long, category)
	}

	var resp struct {
		Posts []struct {
			ID             int64  `json:"id"`
			Excerpt        string `json:"excerpt"`
			ReadingMinutes int    `json:"readingMinutes"`
		} `json:"posts"`
		Pagination model.Pagination `json:"pagination"`
		Categories []string         `json:"categories"`
	}

	rr := api.do(http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))

	assert.Len(t, resp.Posts, 9)
	assert.Equal(t, model.Pagination{Page: 1, Limit: 9, Total: 12, TotalPages: 2}, resp.Pagination)
	assert.Equal(t, []string{"Food", "Tech"}, resp.Categories)
	assert.Equal(t, int64(12), resp.Posts[0].ID)
	assert.NotContains(t, resp.Posts[0].Excerpt, "<p>")
	assert.Equal(t, 3, resp.Posts[0].ReadingMinutes)

	q := url.Values{"category": {"Food"}, "limit": {"2"}, "page": {"2"}}
	rr = api.do(http.MethodGet, "/api/posts?"+q.Encode(), "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Len(t, resp.Posts, 2)
	assert.Equal(t, model.Pagination{Page: 2, Limit: 2, Total: 4, TotalPages: 2}, resp.Pagination)

	rr = api.do(http.MethodGet, "/api/posts?search=xyz-no-match", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"posts":[]`)
}

func TestPostHandlers_ListRejectsBadPaging(t *testing.T) {
	api := newTestAPI(t)

	for _, q := range []string{"page=0", "page=-1", "page=abc", "limit=0", "limit=two"} {
		t.Run(q, func(t *testing.T) {
			rr := api.do(http.MethodGet, "/api/posts?"+q, "", nil)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestPostHandlers_ListHugePageIsEmpty(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp("Ada", "ada@example.com")
	api.createPost(token, "Only", "post", "go")

	rr := api.do(http.MethodGet, "/api/posts?page=1024819115206086202", "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"posts":[]`)
	assert.Contains(t, rr.Body.String(), `"page":1024819115206086202`)
	assert.Contains(t, rr.Body.String(), `"total":1`)
}

func TestPostHandlers_Categories(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp("Ada", "ada@example.com")
	api.createPost(token, "t", "c", "b")
	api.createPost(token, "t", "c", "a")
	api.createPost(token, "t", "c", "b")

	rr := api.do(http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"categories":["a","b"]}`, rr.Body.String())
}

// =========================================================================
// COMMENTS
// =========================================================================

func TestCommentHandlers(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp("Ada", "ada@example.com")
	api.createPost(token, "t", "c", "go")

	t.Run("json body", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/api/posts/1/comments", "", map[string]string{"name": "Alice", "comment": "hello"})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var c model.Comment
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&c))
		require.NotNil(t, c.Name)
		assert.Equal(t, "Alice", *c.Name)
		assert.Nil(t, c.Email)
	})

	t.Run("form body", func(t *testing.T) {
		form := url.Values{"email": {"bob@example.com"}, "comment": {"from a form"}}
		req := httptest.NewRequest(http.MethodPost, "/api/posts/1/comments", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		api.router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	})

	t.Run("no name or email", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/api/posts/1/comments", "", map[string]string{"comment": "hello"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing post", func(t *testing.T) {
		rr := api.do(http.MethodPost, "/api/posts/99/comments", "", map[string]string{"name": "A", "comment": "hello"})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("list newest first", func(t *testing.T) {
		rr := api.do(http.MethodGet, "/api/posts/1/comments", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var list []model.Comment
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
		require.Len(t, list, 2)
		assert.Equal(t, "from a form", list[0].Body)
		assert.Equal(t, "hello", list[1].Body)
	})

	t.Run("delete cascades", func(t *testing.T) {
		rr := api.do(http.MethodDelete, "/api/posts/1", token, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = api.do(http.MethodGet, "/api/posts/1/comments", "", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

// =========================================================================
// AUTH
// =========================================================================

func TestAuthHandlers_LoginSetsCookie(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("Ada", "ada@example.com")

	rr := api.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ada@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, rr.Code)

	var session *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			session = c
		}
	}
	require.NotNil(t, session, "session cookie not set")
	assert.True(t, session.HttpOnly)
	assert.Equal(t, int(time.Hour.Seconds()), session.MaxAge)

	// The cookie alone authenticates /api/me.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: session.Value})
	me := httptest.NewRecorder()
	api.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)

	var user model.User
	require.NoError(t, json.NewDecoder(me.Body).Decode(&user))
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotContains(t, me.Body.String(), "password")
}

func TestAuthHandlers_Errors(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("Ada", "ada@example.com")

	rr := api.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid email or password", decodeError(t, rr).Message)

	rr = api.do(http.MethodPost, "/auth/register", "", map[string]string{"name": "Ada", "email": "ada@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthHandlers_Logout(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestAuthHandlers_AdminMayDeleteAnyPost(t *testing.T) {
	api := newTestAPI(t)
	author := api.signUp("Ada", "ada@example.com")
	api.createPost(author, "t", "c", "go")

	_, _, err := api.users.ProvisionAdmin(context.Background(), "root@example.com", "rootpass", "Root")
	require.NoError(t, err)
	rr := api.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "root@example.com", "password": "rootpass"})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))

	rr = api.do(http.MethodDelete, "/api/posts/1", resp.Token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

// =========================================================================
// HEALTH
// =========================================================================

type downDB struct{}

func (downDB) Ping(context.Context) error { return io.ErrUnexpectedEOF }

func TestHealthHandler(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	h := handler.NewHealthHandler(downDB{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rr = httptest.NewRecorder()
	h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
