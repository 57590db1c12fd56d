// Package seed fills a database with demo users, posts and comments for
// local development. Everything goes through the services, so seeded data
// passes the same validation and policy checks as real traffic.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/sakif/blogspace/internal/model"
	"github.com/sakif/blogspace/internal/service"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

var categories = []string{"Technology", "Travel", "Food", "Lifestyle", "Science", "Culture"}

type Options struct {
	Users           int
	Posts           int
	MaxCommentsPost int
	// Seed makes the generated content reproducible. Zero picks a random seed.
	Seed int64
}

func DefaultOptions() Options {
	return Options{Users: 5, Posts: 30, MaxCommentsPost: 4}
}

// Result counts what was created.
type Result struct {
	Users    int
	Posts    int
	Comments int
	Admin    *model.User
}

type Seeder struct {
	accounts *service.AuthService
	posts    *service.PostService
	comments *service.CommentService
	logger   *slog.Logger
}

func NewSeeder(accounts *service.AuthService, posts *service.PostService, comments *service.CommentService, logger *slog.Logger) *Seeder {
	return &Seeder{accounts: accounts, posts: posts, comments: comments, logger: logger}
}

// Run creates opts.Users accounts (the first one an admin), opts.Posts
// posts spread over them and up to opts.MaxCommentsPost comments per post.
// Under the admin-only policy every post is written by the admin.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Users < 1 {
		return nil, fmt.Errorf("seed: need at least one user, got %d", opts.Users)
	}

	faker := gofakeit.New(opts.Seed)
	res := &Result{}

	var authors []*model.Identity
	for i := range opts.Users {
		name := faker.Name()
		email := fmt.Sprintf("%s.%d@example.com", strings.ToLower(faker.Username()), i+1)

		var (
			user *model.User
			err  error
		)
		if i == 0 {
			user, _, err = s.accounts.ProvisionAdmin(ctx, email, DemoPassword, name)
			res.Admin = user
		} else {
			user, err = s.accounts.Register(ctx, service.RegisterInput{Name: name, Email: email, Password: DemoPassword})
		}
		if err != nil {
			return res, fmt.Errorf("seed: creating user %s: %w", email, err)
		}

		id := service.IdentityOf(user)
		authors = append(authors, &id)
		res.Users++
	}

	if s.posts.Policy() == service.AdminOnlyPolicy.Name {
		authors = authors[:1]
	}

	for i := range opts.Posts {
		author := authors[i%len(authors)]
		post, err := s.posts.Create(ctx, author, service.PostInput{
			Title:    strings.TrimSuffix(faker.Sentence(faker.Number(3, 8)), "."),
			Content:  htmlParagraphs(faker, faker.Number(2, 6)),
			Category: faker.RandomString(categories),
		})
		if err != nil {
			return res, fmt.Errorf("seed: creating post: %w", err)
		}
		res.Posts++

		for range faker.Number(0, opts.MaxCommentsPost) {
			in := service.CommentInput{Body: faker.Sentence(faker.Number(5, 20))}
			// Some commenters leave only a name, some only an email.
			switch faker.Number(0, 2) {
			case 0:
				in.Name = faker.FirstName()
			case 1:
				in.Email = faker.Email()
			default:
				in.Name = faker.Name()
				in.Email = faker.Email()
			}
			if _, err := s.comments.Add(ctx, fmt.Sprint(post.ID), in); err != nil {
				return res, fmt.Errorf("seed: commenting on post %d: %w", post.ID, err)
			}
			res.Comments++
		}
	}

	s.logger.InfoContext(ctx, "database seeded",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
		slog.Int("comments", res.Comments),
	)
	return res, nil
}

func htmlParagraphs(faker *gofakeit.Faker, n int) string {
	var b strings.Builder
	for range n {
		b.WriteString("<p>")
		b.WriteString(faker.Paragraph(1, faker.Number(3, 6), faker.Number(8, 16), " "))
		b.WriteString("</p>\n")
	}
	return b.String()
}
