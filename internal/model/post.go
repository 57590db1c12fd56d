package model

import "time"

// Post is a blog article owned by exactly one user.
//
// AuthorName and CommentCount are read-side fields filled by the repository
// on every read. Comments is only populated when a single post is fetched.
type Post struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Category     string    `json:"category"`
	UserID       int64     `json:"userId"`
	AuthorName   string    `json:"authorName"`
	CommentCount int       `json:"commentCount"`
	Comments     []Comment `json:"comments,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Comment is an anonymous-capable note attached to a post.
// Name and Email are nil when the commenter left them blank.
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"postId"`
	Name      *string   `json:"name"`
	Email     *string   `json:"email"`
	Body      string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// PostPage is one page of a filtered post listing plus the category facet.
type PostPage struct {
	Posts      []Post     `json:"posts"`
	Pagination Pagination `json:"pagination"`
	Categories []string   `json:"categories"`
}
