package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/blogspace/internal/apperror"
	"github.com/sakif/blogspace/internal/auth"
	"github.com/sakif/blogspace/internal/model"
	"github.com/sakif/blogspace/internal/service"
	"github.com/sakif/blogspace/internal/textutil"
)

// PostHandler exposes posts over HTTP. It only translates: query strings and
// JSON in, service calls, JSON out. Who may do what is decided by the
// PostService, using the identity OptionalAuth put in the context.
type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// postRequest is the body of create and update.
type postRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (p postRequest) input() service.PostInput {
	return service.PostInput{Title: p.Title, Content: p.Content, Category: p.Category}
}

// postSummary is a listing row: the post plus a plain-text preview.
type postSummary struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Category       string    `json:"category"`
	UserID         int64     `json:"userId"`
	AuthorName     string    `json:"authorName"`
	CommentCount   int       `json:"commentCount"`
	Excerpt        string    `json:"excerpt"`
	ReadingMinutes int       `json:"readingMinutes"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// postDetail always carries a comments array, empty included.
type postDetail struct {
	*model.Post
	Comments []model.Comment `json:"comments"`
}

type listResponse struct {
	Posts      []postSummary    `json:"posts"`
	Pagination model.Pagination `json:"pagination"`
	Categories []string         `json:"categories"`
}

func summarize(p model.Post) postSummary {
	return postSummary{
		ID:             p.ID,
		Title:          p.Title,
		Content:        p.Content,
		Category:       p.Category,
		UserID:         p.UserID,
		AuthorName:     p.AuthorName,
		CommentCount:   p.CommentCount,
		Excerpt:        textutil.Excerpt(p.Content),
		ReadingMinutes: textutil.ReadingMinutes(p.Content),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// HandleList returns one page of posts.
//
// HTTP: GET /api/posts?search=&category=&page=&limit=
//
// page and limit are optional; when present they must be positive integers.
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := positiveParam(q.Get("page"), "page")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := positiveParam(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.posts.List(r.Context(), service.PostQuery{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Page:     page,
		PageSize: limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := listResponse{
		Posts:      make([]postSummary, 0, len(result.Posts)),
		Pagination: result.Pagination,
		Categories: result.Categories,
	}
	for _, p := range result.Posts {
		resp.Posts = append(resp.Posts, summarize(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGet returns a post with its comments.
//
// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	comments := post.Comments
	if comments == nil {
		comments = []model.Comment{}
	}
	writeJSON(w, http.StatusOK, postDetail{Post: post, Comments: comments})
}

// HandleCreate publishes a post as the caller.
//
// HTTP: POST /api/posts
// REQUEST BODY: {"title": "...", "content": "<p>...</p>", "category": "..."}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())

	if err := h.posts.RequireCaller(caller, "create"); err != nil {
		writeError(w, err)
		return
	}

	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Create(r.Context(), caller, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// HandleUpdate replaces a post's title, content and category.
//
// HTTP: PUT /api/posts/{id}
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if err := h.posts.RequireCaller(caller, "update"); err != nil {
		writeError(w, err)
		return
	}

	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Update(r.Context(), caller, r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleDelete removes a post and its comments.
//
// HTTP: DELETE /api/posts/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	if err := h.posts.Delete(r.Context(), caller, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Post deleted successfully"})
}

// HandleCategories returns the category facet on its own.
//
// HTTP: GET /api/categories
func (h *PostHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.posts.Categories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": categories})
}

// positiveParam parses an optional positive integer query parameter.
// Absent means 0, which the service reads as "use the default".
func positiveParam(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperror.ValidationFailed(name, name+" must be a positive integer")
	}
	return n, nil
}
