package models

import "time"

// Admin is the single blog owner. The application assumes at most one
// meaningful row; the settings form mutates it, nothing deletes it.
type Admin struct {
	ID           int64
	Username     string
	PasswordHash string
	BlogTitle    string
	BlogSubtitle string
	Name         string
	About        string
}

type Category struct {
	ID   int64
	Name string
}

// DefaultCategoryID is the protected "Default" category. It cannot be
// edited or deleted, and posts of a deleted category are moved into it.
const DefaultCategoryID int64 = 1

type Post struct {
	ID         int64
	Title      string
	Body       string
	Created    time.Time
	CanComment bool
	CategoryID int64

	// CategoryName is filled by listing queries for display.
	CategoryName string
	// CommentCount is filled by listing queries for the manage screen.
	CommentCount int
}

type Comment struct {
	ID        int64
	Author    string
	Email     string
	Site      string
	Body      string
	Created   time.Time
	FromAdmin bool
	Reviewed  bool
	PostID    int64
	// RepliedID is zero for top-level comments.
	RepliedID int64

	// RepliedAuthor is filled by listing queries for display.
	RepliedAuthor string
	// PostTitle is filled by the moderation queue for display.
	PostTitle string
}

type Link struct {
	ID   int64
	Name string
	URL  string
}

// Session is a logged-in admin session addressed by its opaque token.
type Session struct {
	Token     string
	AdminID   int64
	Expires   time.Time
	CreatedAt time.Time
}
