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

const (
	DefaultPageSize = 9
	MaxPageSize     = 100
	MaxTitleLength  = 200
)

// CategoryCache holds the global category facet. Implementations report
// failures as misses; the service always falls back to the repository.
//
// Get returns the generation the lookup ran under and Set stores under that
// generation. Invalidate starts a new generation, so a Set computed from a
// read that raced with a write lands where no reader looks. A negative
// generation means the cache is unavailable and Set is skipped.
type CategoryCache interface {
	Get(ctx context.Context) (categories []string, generation int64, ok bool)
	Set(ctx context.Context, generation int64, categories []string)
	Invalidate(ctx context.Context)
}

// PostQuery selects one page of the listing. Zero Page and PageSize take
// the defaults (1 and DefaultPageSize).
type PostQuery struct {
	Search   string
	Category string
	Page     int
	PageSize int
}

// PostInput carries the writable fields of a post. All three are required
// on both create and update; update replaces them wholesale.
type PostInput struct {
	Title    string
	Content  string
	Category string
}

func (in *PostInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Category = strings.TrimSpace(in.Category)
}

func (in PostInput) validate() error {
	var missing []string
	if in.Title == "" {
		missing = append(missing, "title")
	}
	if in.Content == "" {
		missing = append(missing, "content")
	}
	if in.Category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return apperror.MissingFields(missing...)
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	return nil
}

// PostService enforces who may read and write posts.
type PostService struct {
	repo   repository.PostRepository
	cache  CategoryCache
	policy AuthorPolicy
	logger *slog.Logger
}

// NewPostService wires a PostService. cache may be nil.
func NewPostService(repo repository.PostRepository, cache CategoryCache, policy AuthorPolicy, logger *slog.Logger) *PostService {
	return &PostService{
		repo:   repo,
		cache:  cache,
		policy: policy,
		logger: logger,
	}
}

// Policy exposes the active author policy name for logging at startup.
func (s *PostService) Policy() string {
	return s.policy.Name
}

// List returns one page of posts matching q, newest first, with the total
// count and the global category facet.
//
// Count and page are two independent reads; under concurrent writes the
// total can disagree with the page by the writes in between.
func (s *PostService) List(ctx context.Context, q PostQuery) (_ *model.PostPage, err error) {
	ctx, span := observability.StartSpan(ctx, "PostService", "List",
		attribute.String("search", q.Search),
		attribute.String("category", q.Category),
	)
	defer func() { observability.EndSpan(span, err) }()

	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = DefaultPageSize
	}
	if q.Page < 1 {
		return nil, apperror.ValidationFailed("page", "page must be a positive integer")
	}
	if q.PageSize < 1 {
		return nil, apperror.ValidationFailed("limit", "limit must be a positive integer")
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}

	filter := repository.PostFilter{
		Search:   strings.TrimSpace(q.Search),
		Category: strings.TrimSpace(q.Category),
		Limit:    q.PageSize,
	}

	total, err := s.repo.CountPosts(ctx, filter)
	if err != nil {
		return nil, fail(ctx, s.logger, "counting posts", err)
	}
	totalPages := (total + q.PageSize - 1) / q.PageSize

	// Past the last page the result is empty. Checking before computing the
	// offset also keeps (Page-1)*PageSize from overflowing on huge pages.
	posts := []model.Post{}
	if q.Page <= totalPages {
		filter.Offset = (q.Page - 1) * q.PageSize
		posts, err = s.repo.ListPosts(ctx, filter)
		if err != nil {
			return nil, fail(ctx, s.logger, "listing posts", err)
		}
	}

	categories, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}

	return &model.PostPage{
		Posts: posts,
		Pagination: model.Pagination{
			Page:       q.Page,
			Limit:      q.PageSize,
			Total:      total,
			TotalPages: totalPages,
		},
		Categories: categories,
	}, nil
}

// Categories returns the sorted distinct categories over every post,
// served from the cache when possible.
func (s *PostService) Categories(ctx context.Context) ([]string, error) {
	generation := int64(-1)
	if s.cache != nil {
		categories, gen, ok := s.cache.Get(ctx)
		if ok {
			return categories, nil
		}
		generation = gen
	}

	categories, err := s.repo.PostCategories(ctx)
	if err != nil {
		return nil, fail(ctx, s.logger, "listing categories", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, generation, categories)
	}
	return categories, nil
}

// Get returns a post with its author name and comments. No identity needed.
func (s *PostService) Get(ctx context.Context, rawID string) (_ *model.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "PostService", "Get", attribute.String("post.id", rawID))
	defer func() { observability.EndSpan(span, err) }()

	id, err := parseID("post", rawID)
	if err != nil {
		return nil, err
	}

	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, fail(ctx, s.logger, "getting post", err, slog.Int64("post_id", id))
	}
	return post, nil
}

var loginRequired = map[string]string{
	"create": "you must be logged in to create a post",
	"update": "you must be logged in to edit a post",
	"delete": "you must be logged in to delete a post",
}

// RequireCaller is the identity gate every write starts with. op is one of
// create, update or delete. Handlers call it before decoding a request body
// so an anonymous caller gets 401 even when the body is also bad.
func (s *PostService) RequireCaller(caller *model.Identity, op string) error {
	if caller != nil {
		return nil
	}
	observability.AccessDenials.WithLabelValues(op, "unauthenticated").Inc()
	return apperror.Unauthorized(loginRequired[op])
}

// Create publishes a post owned by the caller.
//
// Checks run in order: identity (401), policy (403), fields (400).
func (s *PostService) Create(ctx context.Context, caller *model.Identity, in PostInput) (_ *model.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "PostService", "Create")
	defer func() { observability.EndSpan(span, err) }()

	if err := s.RequireCaller(caller, "create"); err != nil {
		return nil, err
	}
	if !s.policy.CanCreate(caller) {
		observability.AccessDenials.WithLabelValues("create", "forbidden").Inc()
		return nil, apperror.Forbidden("you are not allowed to create posts")
	}

	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	post := &model.Post{
		Title:    in.Title,
		Content:  in.Content,
		Category: in.Category,
		UserID:   caller.UserID,
	}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, fail(ctx, s.logger, "creating post", err, slog.Int64("user_id", caller.UserID))
	}

	s.afterWrite(ctx, "created")
	s.logger.InfoContext(ctx, "post created",
		slog.Int64("id", post.ID),
		slog.Int64("user_id", post.UserID),
		slog.String("category", post.Category),
	)
	return post, nil
}

// Update replaces title, content and category of a post the caller may modify.
//
// Checks run in order: identity (401), id (400), fields (400), existence
// (404), policy (403). Concurrent updates are last-writer-wins.
func (s *PostService) Update(ctx context.Context, caller *model.Identity, rawID string, in PostInput) (_ *model.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "PostService", "Update", attribute.String("post.id", rawID))
	defer func() { observability.EndSpan(span, err) }()

	if err := s.RequireCaller(caller, "update"); err != nil {
		return nil, err
	}

	id, err := parseID("post", rawID)
	if err != nil {
		return nil, err
	}

	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	existing, err := s.authorize(ctx, caller, id, "update")
	if err != nil {
		return nil, err
	}

	existing.Title = in.Title
	existing.Content = in.Content
	existing.Category = in.Category

	updated, err := s.repo.UpdatePost(ctx, existing)
	if err != nil {
		return nil, fail(ctx, s.logger, "updating post", err, slog.Int64("post_id", id))
	}

	s.afterWrite(ctx, "updated")
	s.logger.InfoContext(ctx, "post updated",
		slog.Int64("id", id),
		slog.Int64("by", caller.UserID),
	)
	return updated, nil
}

// Delete removes a post and all of its comments.
func (s *PostService) Delete(ctx context.Context, caller *model.Identity, rawID string) (err error) {
	ctx, span := observability.StartSpan(ctx, "PostService", "Delete", attribute.String("post.id", rawID))
	defer func() { observability.EndSpan(span, err) }()

	if err := s.RequireCaller(caller, "delete"); err != nil {
		return err
	}

	id, err := parseID("post", rawID)
	if err != nil {
		return err
	}

	if _, err := s.authorize(ctx, caller, id, "delete"); err != nil {
		return err
	}

	if err := s.repo.DeletePost(ctx, id); err != nil {
		return fail(ctx, s.logger, "deleting post", err, slog.Int64("post_id", id))
	}

	s.afterWrite(ctx, "deleted")
	s.logger.InfoContext(ctx, "post deleted",
		slog.Int64("id", id),
		slog.Int64("by", caller.UserID),
	)
	return nil
}

// authorize loads the post and applies the modify policy.
func (s *PostService) authorize(ctx context.Context, caller *model.Identity, id int64, op string) (*model.Post, error) {
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, fail(ctx, s.logger, "getting post", err, slog.Int64("post_id", id))
	}
	if !s.policy.CanModify(caller, post) {
		observability.AccessDenials.WithLabelValues(op, "forbidden").Inc()
		s.logger.DebugContext(ctx, "post modification denied",
			slog.String("op", op),
			slog.Int64("post_id", id),
			slog.Int64("user_id", caller.UserID),
		)
		return nil, apperror.Forbidden(fmt.Sprintf("you are not allowed to %s this post", op))
	}
	return post, nil
}

func (s *PostService) afterWrite(ctx context.Context, action string) {
	observability.PostEvents.WithLabelValues(action).Inc()
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
