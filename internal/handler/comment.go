package handler

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/sakif/blogspace/internal/apperror"
	"github.com/sakif/blogspace/internal/model"
	"github.com/sakif/blogspace/internal/service"
)

// CommentHandler serves the comments under a post. No account is needed.
type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

type commentRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Comment string `json:"comment"`
}

// HandleList returns a post's comments, newest first.
//
// HTTP: GET /api/posts/{id}/comments
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.List(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleCreate adds a comment to a post.
//
// HTTP: POST /api/posts/{id}/comments
// REQUEST BODY: {"name": "Alice", "email": "", "comment": "Nice post"}
//
// Plain HTML forms post the same three fields urlencoded, so both
// application/json and application/x-www-form-urlencoded are accepted.
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeComment(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.comments.Add(r.Context(), r.PathValue("id"), service.CommentInput{
		Name:  req.Name,
		Email: req.Email,
		Body:  req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func decodeComment(w http.ResponseWriter, r *http.Request) (commentRequest, error) {
	var req commentRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/x-www-form-urlencoded" && mediaType != "multipart/form-data" {
		err := decodeJSON(w, r, &req)
		return req, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return req, apperror.ValidationFailed("body", "invalid form body")
	}

	req.Name = r.PostFormValue("name")
	req.Email = r.PostFormValue("email")
	req.Comment = r.PostFormValue("comment")
	return req, nil
}
