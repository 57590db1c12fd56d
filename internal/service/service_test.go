package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/sakif/blogspace/internal/apperror"
	"github.com/sakif/blogspace/internal/model"
	"github.com/sakif/blogspace/internal/repository"
	"github.com/sakif/blogspace/internal/repository/sqlite"
)

// =========================================================================
// SHARED FIXTURES
// =========================================================================

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDB opens a private in-memory database for one test.
func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedUser stores an account directly, bypassing AuthService validation.
func seedUser(t *testing.T, db *sqlite.DB, name, email string, admin bool) *model.Identity {
	t.Helper()
	u := &model.User{Name: name, Email: email, PasswordHash: "x", IsAdmin: admin}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return &model.Identity{UserID: u.ID, Name: u.Name, IsAdmin: u.IsAdmin}
}

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("error = %v, want %v", err, kind)
	}
}

// fakeCategoryCache records calls so tests can see hits and invalidations.
// It keeps one entry tagged with the generation it was stored under.
type fakeCategoryCache struct {
	generation  int64
	storedGen   int64
	stored      []string
	ok          bool
	gets        int
	sets        int
	invalidated int
}

func (c *fakeCategoryCache) Get(context.Context) ([]string, int64, bool) {
	c.gets++
	if c.ok && c.storedGen == c.generation {
		return c.stored, c.generation, true
	}
	return nil, c.generation, false
}

func (c *fakeCategoryCache) Set(_ context.Context, generation int64, categories []string) {
	c.sets++
	c.storedGen = generation
	c.stored = categories
	c.ok = true
}

func (c *fakeCategoryCache) Invalidate(context.Context) {
	c.invalidated++
	c.generation++
}

// racingRepo runs afterCategories once, right after the facet is read from
// storage and before the service caches it.
type racingRepo struct {
	*sqlite.DB
	afterCategories func()
}

func (r *racingRepo) PostCategories(ctx context.Context) ([]string, error) {
	categories, err := r.DB.PostCategories(ctx)
	if hook := r.afterCategories; hook != nil {
		r.afterCategories = nil
		hook()
	}
	return categories, err
}

// brokenRepo fails every call with a storage error, to exercise the
// Internal error path. The error text stands in for SQL detail that must
// never reach a caller.
type brokenRepo struct{}

var errDiskFull = errors.New("sqlite: database or disk is full (/var/lib/blog.db)")

func (brokenRepo) CreatePost(context.Context, *model.Post) error { return errDiskFull }
func (brokenRepo) GetPost(context.Context, int64) (*model.Post, error) {
	return nil, errDiskFull
}
func (brokenRepo) ListPosts(context.Context, repository.PostFilter) ([]model.Post, error) {
	return nil, errDiskFull
}
func (brokenRepo) CountPosts(context.Context, repository.PostFilter) (int, error) {
	return 0, errDiskFull
}
func (brokenRepo) PostCategories(context.Context) ([]string, error) { return nil, errDiskFull }
func (brokenRepo) UpdatePost(context.Context, *model.Post) (*model.Post, error) {
	return nil, errDiskFull
}
func (brokenRepo) DeletePost(context.Context, int64) error { return errDiskFull }
func (brokenRepo) CreateComment(context.Context, *model.Comment) error {
	return errDiskFull
}
func (brokenRepo) ListComments(context.Context, int64) ([]model.Comment, error) {
	return nil, errDiskFull
}

// =========================================================================
// HELPER TESTS
// =========================================================================

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{" 42 ", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"1.5", 0, true},
		{"", 0, true},
		{"99999999999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseID("post", tt.raw)
			if tt.wantErr {
				wantKind(t, err, apperror.ErrValidation)
				return
			}
			if err != nil {
				t.Fatalf("parseID(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("parseID(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFail_PassesDomainErrorsThrough(t *testing.T) {
	notFound := apperror.NotFound("post", "7")
	if got := fail(context.Background(), newTestLogger(), "op", notFound); got != notFound {
		t.Errorf("fail() = %v, want the original error", got)
	}
}

func TestFail_HidesStorageErrors(t *testing.T) {
	err := fail(context.Background(), newTestLogger(), "listing posts", errDiskFull)

	wantKind(t, err, apperror.ErrInternal)
	if err.Error() != "an internal error occurred" {
		t.Errorf("message = %q, leaks detail", err.Error())
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || !errors.Is(appErr.Cause(), errDiskFull) {
		t.Error("Cause() should keep the storage error for logs")
	}
}
