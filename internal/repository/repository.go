// Package repository declares the storage contracts the services depend on.
//
// One concrete type (sqlite.DB) implements all three interfaces, so method
// names carry their noun (CreatePost, CreateComment, CreateUser) to avoid
// collisions on the shared receiver.
package repository

import (
	"context"

	"github.com/sakif/blogspace/internal/model"
)

// PostFilter narrows a post listing. Zero values mean "no constraint";
// Limit <= 0 means "no limit" and is only used by Count.
type PostFilter struct {
	Search   string // case-insensitive substring over title, content and category
	Category string // exact match
	Limit    int
	Offset   int
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	// GetPost returns the post with its author name, comment count and
	// comments (newest first).
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]model.Post, error)
	CountPosts(ctx context.Context, filter PostFilter) (int, error)
	PostCategories(ctx context.Context) ([]string, error)
	// UpdatePost replaces title, content and category and returns the
	// stored row as it reads after the write.
	UpdatePost(ctx context.Context, post *model.Post) (*model.Post, error)
	// DeletePost removes the post and all of its comments atomically.
	DeletePost(ctx context.Context, id int64) error
}

type CommentRepository interface {
	// CreateComment fails with NotFound when the post does not exist.
	CreateComment(ctx context.Context, comment *model.Comment) error
	ListComments(ctx context.Context, postID int64) ([]model.Comment, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertGitHubUser links by GitHub id, then by email, else inserts.
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	// PromoteUser sets name, password hash and the admin flag in one write.
	PromoteUser(ctx context.Context, user *model.User) error
}
