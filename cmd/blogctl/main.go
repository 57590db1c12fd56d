// Command blogctl runs administrative tasks against the blog database:
// provisioning admin accounts and seeding demo content. It reads the same
// configuration as the server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sakif/blogspace/internal/auth"
	"github.com/sakif/blogspace/internal/cache"
	"github.com/sakif/blogspace/internal/config"
	"github.com/sakif/blogspace/internal/observability"
	"github.com/sakif/blogspace/internal/repository/sqlite"
	"github.com/sakif/blogspace/internal/seed"
	"github.com/sakif/blogspace/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// env holds what every subcommand needs once configuration is loaded.
type env struct {
	cfg    *config.Config
	db     *sqlite.DB
	logger *slog.Logger
}

func openEnv() (*env, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(".", "./config")
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := observability.NewLogger(os.Stderr, cfg.Env, cfg.LogLevel)

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &env{cfg: cfg, db: db, logger: logger}, nil
}

func (e *env) accounts() (*service.AuthService, error) {
	tokens, err := auth.NewTokenService(e.cfg.JWTSecret, e.cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	return service.NewAuthService(e.db, tokens, auth.NewPasswordService(), e.logger), nil
}

// categories returns the category cache the server reads, so writes made
// here invalidate its facet. Without REDIS_URL, or when Redis is down, the
// returned cache is a no-op. The close func is always safe to call.
func (e *env) categories(ctx context.Context) (*cache.Categories, func()) {
	if e.cfg.RedisURL == "" {
		return cache.NewCategories(nil, e.cfg.CategoryCacheTTL, e.logger), func() {}
	}
	client, err := cache.Connect(ctx, e.cfg.RedisURL)
	if err != nil {
		e.logger.Warn("redis unavailable, the server's category facet may stay stale until it expires",
			slog.String("error", err.Error()))
		return cache.NewCategories(nil, e.cfg.CategoryCacheTTL, e.logger), func() {}
	}
	return cache.NewCategories(client, e.cfg.CategoryCacheTTL, e.logger), func() { client.Close() }
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "blogctl",
		Short:        "Administrative tasks for the blog database",
		SilenceUsage: true,
	}
	root.AddCommand(newCreateAdminCmd(), newSeedCmd())
	return root
}

func newCreateAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-admin <email> <password> <name>",
		Short: "Create an admin account, or promote an existing one",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.db.Close()

			accounts, err := e.accounts()
			if err != nil {
				return err
			}

			user, created, err := accounts.ProvisionAdmin(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			verb := "promoted"
			if created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s (%s, id %d)\n", verb, user.Email, user.ID)
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	opts := seed.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with demo users, posts and comments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.db.Close()

			accounts, err := e.accounts()
			if err != nil {
				return err
			}
			policy, err := service.PolicyByName(e.cfg.PostPolicy)
			if err != nil {
				return err
			}

			categories, closeCache := e.categories(cmd.Context())
			defer closeCache()

			seeder := seed.NewSeeder(
				accounts,
				service.NewPostService(e.db, categories, policy, e.logger),
				service.NewCommentService(e.db, e.logger),
				e.logger,
			)

			res, err := seeder.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d posts, %d comments\n", res.Users, res.Posts, res.Comments)
			fmt.Fprintf(cmd.OutOrStdout(), "admin login: %s / %s\n", res.Admin.Email, seed.DemoPassword)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Users, "users", opts.Users, "number of accounts to create (the first is an admin)")
	cmd.Flags().IntVar(&opts.Posts, "posts", opts.Posts, "number of posts to create")
	cmd.Flags().IntVar(&opts.MaxCommentsPost, "max-comments", opts.MaxCommentsPost, "upper bound on comments per post")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed for reproducible content (0 = random)")
	return cmd
}
