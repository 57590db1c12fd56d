package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/blogspace/internal/apperror"
	"github.com/sakif/blogspace/internal/model"
	"github.com/sakif/blogspace/internal/observability"
	"github.com/sakif/blogspace/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, email, password_hash, is_admin, github_id, created_at, updated_at`

func scanUser(row rowScanner, u *model.User) error {
	return row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin,
		&u.GitHubID, &u.CreatedAt, &u.UpdatedAt,
	)
}

// CreateUser inserts a new account. A duplicate email is a Conflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	defer observability.TrackQuery("insert", "users")()

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, is_admin, github_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Name, user.Email, user.PasswordHash, user.IsAdmin, user.GitHubID,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	user.ID = id
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	defer observability.TrackQuery("select", "users")()

	var u model.User
	err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id), &u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return &u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	defer observability.TrackQuery("select", "users")()

	var u model.User
	err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email), &u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return &u, nil
}

// UpsertGitHubUser resolves a GitHub login to an account:
//  1. an account already linked to the GitHub id is reused
//  2. otherwise an account with the same email is linked
//  3. otherwise a new password-less account is created
//
// user.GitHubID must be set. On return user holds the stored row.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	defer observability.TrackQuery("upsert", "users")()

	if user.GitHubID == nil {
		return errors.New("sqlite: upserting GitHub user without a GitHub id")
	}
	ghID := *user.GitHubID

	return db.withTx(ctx, func(tx *sql.Tx) error {
		var existing model.User
		err := scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE github_id = ?`, ghID), &existing)
		if err == nil {
			*user = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlite: looking up user by github_id %d: %w", ghID, err)
		}

		now := time.Now().UTC()

		err = scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = ?`, user.Email), &existing)
		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET github_id = ?, updated_at = ? WHERE id = ?`,
				ghID, now, existing.ID,
			); err != nil {
				return fmt.Errorf("sqlite: linking github_id %d to user %d: %w", ghID, existing.ID, err)
			}
			existing.GitHubID = &ghID
			existing.UpdatedAt = now
			*user = existing
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("sqlite: looking up user by email: %w", err)
		}

		user.CreatedAt = now
		user.UpdatedAt = now
		result, err := tx.ExecContext(ctx,
			`INSERT INTO users (name, email, password_hash, is_admin, github_id, created_at, updated_at)
			 VALUES (?, ?, '', 0, ?, ?, ?)`,
			user.Name, user.Email, ghID, user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", ghID, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading user id: %w", err)
		}
		user.ID = id
		user.IsAdmin = false
		user.PasswordHash = ""
		return nil
	})
}

// PromoteUser grants admin and resets name and password hash.
func (db *DB) PromoteUser(ctx context.Context, user *model.User) error {
	defer observability.TrackQuery("update", "users")()

	user.UpdatedAt = time.Now().UTC()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, password_hash = ?, is_admin = 1, updated_at = ? WHERE id = ?`,
		user.Name, user.PasswordHash, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: promoting user %d: %w", user.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(user.ID, 10))
	}
	user.IsAdmin = true
	return nil
}
