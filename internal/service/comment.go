package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sakif/blogspace/internal/apperror"
	"github.com/sakif/blogspace/internal/model"
	"github.com/sakif/blogspace/internal/observability"
	"github.com/sakif/blogspace/internal/repository"
)

const MaxCommentLength = 5000

// CommentInput is a comment as submitted. Name and Email are optional on
// their own but at least one must be present.
type CommentInput struct {
	Name  string
	Email string
	Body  string
}

// CommentService handles comments. Commenting needs no account.
type CommentService struct {
	repo   repository.CommentRepository
	logger *slog.Logger
}

func NewCommentService(repo repository.CommentRepository, logger *slog.Logger) *CommentService {
	return &CommentService{repo: repo, logger: logger}
}

// Add stores a comment on the post identified by rawPostID.
func (s *CommentService) Add(ctx context.Context, rawPostID string, in CommentInput) (_ *model.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService", "Add", attribute.String("post.id", rawPostID))
	defer func() { observability.EndSpan(span, err) }()

	postID, err := parseID("post", rawPostID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	body := strings.TrimSpace(in.Body)

	var missing []string
	if name == "" && email == "" {
		missing = append(missing, "name or email")
	}
	if body == "" {
		missing = append(missing, "comment")
	}
	if len(missing) > 0 {
		return nil, apperror.MissingFields(missing...)
	}
	if utf8.RuneCountInString(body) > MaxCommentLength {
		return nil, apperror.ValidationFailed("comment",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	comment := &model.Comment{
		PostID: postID,
		Name:   nilIfEmpty(name),
		Email:  nilIfEmpty(email),
		Body:   body,
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, fail(ctx, s.logger, "creating comment", err, slog.Int64("post_id", postID))
	}

	observability.CommentsCreated.Inc()
	s.logger.InfoContext(ctx, "comment added",
		slog.Int64("id", comment.ID),
		slog.Int64("post_id", postID),
	)
	return comment, nil
}

// List returns the post's comments newest first.
func (s *CommentService) List(ctx context.Context, rawPostID string) (_ []model.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService", "List", attribute.String("post.id", rawPostID))
	defer func() { observability.EndSpan(span, err) }()

	postID, err := parseID("post", rawPostID)
	if err != nil {
		return nil, err
	}

	comments, err := s.repo.ListComments(ctx, postID)
	if err != nil {
		return nil, fail(ctx, s.logger, "listing comments", err, slog.Int64("post_id", postID))
	}
	return comments, nil
}
