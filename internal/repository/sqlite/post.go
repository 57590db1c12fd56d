package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/blogspace/internal/apperror"
	"github.com/sakif/blogspace/internal/model"
	"github.com/sakif/blogspace/internal/observability"
	"github.com/sakif/blogspace/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

// postColumns selects a post with its author's name and comment count.
// LEFT JOIN keeps a post readable even if its author row is gone.
const postColumns = `
	p.id, p.title, p.content, p.category, p.user_id,
	COALESCE(u.name, ''),
	(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
	p.created_at, p.updated_at
	FROM posts p
	LEFT JOIN users u ON u.id = p.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner, p *model.Post) error {
	return row.Scan(
		&p.ID, &p.Title, &p.Content, &p.Category, &p.UserID,
		&p.AuthorName, &p.CommentCount,
		&p.CreatedAt, &p.UpdatedAt,
	)
}

// CreatePost inserts the post and fills ID, timestamps and AuthorName.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	defer observability.TrackQuery("insert", "posts")()

	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO posts (title, content, category, user_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			post.Title, post.Content, post.Category, post.UserID,
			post.CreatedAt, post.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: creating post: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading post id: %w", err)
		}
		post.ID = id

		err = tx.QueryRowContext(ctx, `SELECT name FROM users WHERE id = ?`, post.UserID).
			Scan(&post.AuthorName)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlite: reading author of post %d: %w", id, err)
		}
		return nil
	})
}

// GetPost returns the post with its comments, newest first.
func (db *DB) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	defer observability.TrackQuery("select", "posts")()

	post, err := getPost(ctx, db.conn, id)
	if err != nil {
		return nil, err
	}

	comments, err := listComments(ctx, db.conn, id)
	if err != nil {
		return nil, err
	}
	post.Comments = comments

	return post, nil
}

func getPost(ctx context.Context, q querier, id int64) (*model.Post, error) {
	var post model.Post
	err := scanPost(q.QueryRowContext(ctx, `SELECT `+postColumns+` WHERE p.id = ?`, id), &post)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting post %d: %w", id, err)
	}
	return &post, nil
}

// ListPosts returns one page of posts matching filter, newest first.
// Ties on created_at are broken by id so paging is stable.
func (db *DB) ListPosts(ctx context.Context, filter repository.PostFilter) ([]model.Post, error) {
	defer observability.TrackQuery("list", "posts")()

	where, args := buildPostFilter(filter)
	query := `SELECT ` + postColumns + where + ` ORDER BY p.created_at DESC, p.id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0, max(filter.Limit, 0))
	for rows.Next() {
		var p model.Post
		if err := scanPost(rows, &p); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	return posts, nil
}

// CountPosts counts every post matching filter, ignoring Limit and Offset.
func (db *DB) CountPosts(ctx context.Context, filter repository.PostFilter) (int, error) {
	defer observability.TrackQuery("count", "posts")()

	where, args := buildPostFilter(filter)
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sqlite: counting posts: %w", err)
	}
	return total, nil
}

// PostCategories returns the sorted distinct categories over all posts.
func (db *DB) PostCategories(ctx context.Context) ([]string, error) {
	defer observability.TrackQuery("categories", "posts")()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT category FROM posts WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing categories: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("sqlite: scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating categories: %w", err)
	}
	return categories, nil
}

// UpdatePost overwrites title, content and category. The read-back happens
// in the same transaction so the caller sees exactly what was written.
func (db *DB) UpdatePost(ctx context.Context, post *model.Post) (*model.Post, error) {
	defer observability.TrackQuery("update", "posts")()

	var updated *model.Post
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE posts
			 SET title = ?, content = ?, category = ?, updated_at = ?
			 WHERE id = ?`,
			post.Title, post.Content, post.Category, time.Now().UTC(), post.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating post %d: %w", post.ID, err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("post", strconv.FormatInt(post.ID, 10))
		}

		updated, err = getPost(ctx, tx, post.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeletePost removes the post and its comments in one transaction.
func (db *DB) DeletePost(ctx context.Context, id int64) error {
	defer observability.TrackQuery("delete", "posts")()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE post_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting comments of post %d: %w", id, err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting post %d: %w", id, err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("post", strconv.FormatInt(id, 10))
		}
		return nil
	})
}

// buildPostFilter renders the WHERE clause shared by ListPosts and CountPosts.
func buildPostFilter(filter repository.PostFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		clauses = append(clauses,
			`(ulower(p.title) LIKE ? ESCAPE '\' OR ulower(p.content) LIKE ? ESCAPE '\' OR ulower(p.category) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		clauses = append(clauses, `p.category = ?`)
		args = append(args, category)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// escapeLike makes %, _ and \ match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
