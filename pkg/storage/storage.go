package storage

import (
	"context"
	"fmt"
	"time"

	"bluelog/pkg/models"
)

var (
	ErrDBNotResponding = fmt.Errorf("DB not responding")

	ErrAdminNotFound    = fmt.Errorf("admin not found")
	ErrPostNotFound     = fmt.Errorf("post not found")
	ErrCategoryNotFound = fmt.Errorf("category not found")
	ErrCommentNotFound  = fmt.Errorf("comment not found")
	ErrLinkNotFound     = fmt.Errorf("link not found")
	ErrSessionNotFound  = fmt.Errorf("session not found")
	ErrPageNotFound     = fmt.Errorf("page out of range")

	ErrParentCommentNotFound = fmt.Errorf("parent comment not found")
	ErrCommentsClosed        = fmt.Errorf("comments are closed for this post")
	ErrProtectedCategory     = fmt.Errorf("the default category is protected")
	ErrDuplicateCategory     = fmt.Errorf("category name already exists")
)

// CommentFilter selects a slice of the moderation queue.
type CommentFilter string

const (
	FilterAll    CommentFilter = "all"
	FilterUnread CommentFilter = "unread"
	FilterAdmin  CommentFilter = "admin"
)

// ParseCommentFilter maps a query parameter to a filter,
// falling back to FilterAll for anything unrecognized.
func ParseCommentFilter(s string) CommentFilter {
	switch CommentFilter(s) {
	case FilterUnread:
		return FilterUnread
	case FilterAdmin:
		return FilterAdmin
	default:
		return FilterAll
	}
}

// Storage is the persistence contract shared by the postgres
// implementation and the in-memory fake.
//
// Paginated listings return the requested page and the total number of
// pages; pages are 1-based and items are ordered by creation time
// descending. Asking for a page past the last yields ErrPageNotFound
// together with the page count, so callers can either 404 or clamp.
type Storage interface {
	Ping(ctx context.Context) error

	Admin(ctx context.Context) (models.Admin, error)
	AdminByUsername(ctx context.Context, username string) (models.Admin, error)
	CreateAdmin(ctx context.Context, admin models.Admin) (int64, error)
	UpdateAdminSettings(ctx context.Context, admin models.Admin) error

	Categories(ctx context.Context) ([]models.Category, error)
	Category(ctx context.Context, id int64) (models.Category, error)
	CreateCategory(ctx context.Context, name string) (int64, error)
	UpdateCategory(ctx context.Context, id int64, name string) error
	// DeleteCategory reassigns the category's posts to the default
	// category before removing the row. Deleting the default category
	// returns ErrProtectedCategory.
	DeleteCategory(ctx context.Context, id int64) error

	Posts(ctx context.Context, page, limit int) ([]models.Post, int, error)
	PostsByCategory(ctx context.Context, categoryID int64, page, limit int) ([]models.Post, int, error)
	Post(ctx context.Context, id int64) (models.Post, error)
	CreatePost(ctx context.Context, post models.Post) (int64, error)
	UpdatePost(ctx context.Context, post models.Post) error
	// DeletePost removes the post and every comment it owns.
	DeletePost(ctx context.Context, id int64) error
	SetCommenting(ctx context.Context, id int64, enabled bool) error

	Comments(ctx context.Context, postID int64, onlyReviewed bool, page, limit int) ([]models.Comment, int, error)
	FilterComments(ctx context.Context, filter CommentFilter, page, limit int) ([]models.Comment, int, error)
	Comment(ctx context.Context, id int64) (models.Comment, error)
	// CreateComment validates that the post accepts comments and that a
	// non-zero RepliedID names an existing comment on the same post.
	CreateComment(ctx context.Context, comment models.Comment) (int64, error)
	ApproveComment(ctx context.Context, id int64) error
	DeleteComment(ctx context.Context, id int64) error
	CountUnreviewed(ctx context.Context) (int, error)

	Links(ctx context.Context) ([]models.Link, error)
	Link(ctx context.Context, id int64) (models.Link, error)
	CreateLink(ctx context.Context, link models.Link) (int64, error)
	UpdateLink(ctx context.Context, link models.Link) error
	DeleteLink(ctx context.Context, id int64) error

	CreateSession(ctx context.Context, s models.Session) error
	Session(ctx context.Context, token string) (models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

// NumPages returns how many pages of size limit a set of total items
// occupies.
func NumPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// ClampPage normalizes a requested page against the page count. Pages
// below 1 become 1; pages past the end become the last page. An empty
// listing clamps to page 1.
func ClampPage(page, numPages int) int {
	if page < 1 || numPages < 1 {
		return 1
	}
	if page > numPages {
		return numPages
	}
	return page
}
