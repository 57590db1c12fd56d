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

var _ repository.CommentRepository = (*DB)(nil)

// CreateComment stores comment under its post. The existence check and the
// insert share a transaction so a concurrent delete cannot orphan the row.
func (db *DB) CreateComment(ctx context.Context, comment *model.Comment) error {
	defer observability.TrackQuery("insert", "comments")()

	comment.CreatedAt = time.Now().UTC()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := postExists(ctx, tx, comment.PostID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO comments (post_id, name, email, body, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			comment.PostID, comment.Name, comment.Email, comment.Body, comment.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: creating comment on post %d: %w", comment.PostID, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading comment id: %w", err)
		}
		comment.ID = id
		return nil
	})
}

// ListComments returns the post's comments, newest first.
// A missing post is NotFound; a post without comments is an empty slice.
func (db *DB) ListComments(ctx context.Context, postID int64) ([]model.Comment, error) {
	defer observability.TrackQuery("list", "comments")()

	if err := postExists(ctx, db.conn, postID); err != nil {
		return nil, err
	}
	return listComments(ctx, db.conn, postID)
}

func postExists(ctx context.Context, q querier, postID int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("post", strconv.FormatInt(postID, 10))
		}
		return fmt.Errorf("sqlite: checking post %d: %w", postID, err)
	}
	return nil
}

func listComments(ctx context.Context, q querier, postID int64) ([]model.Comment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, post_id, name, email, body, created_at
		 FROM comments
		 WHERE post_id = ?
		 ORDER BY created_at DESC, id DESC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of post %d: %w", postID, err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.Name, &c.Email, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}
