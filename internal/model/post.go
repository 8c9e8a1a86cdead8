package model

import "time"

// DefaultCategory is assigned to posts created without a category.
const DefaultCategory = "General"

// Post represents a row in the `posts` table.  A post is owned by its
// author and stays hidden from the public until an admin publishes it.
type Post struct {
	ID          string
	Title       string
	Content     string
	Image       string // optional image URL, empty when unset
	AuthorID    string
	Author      *UserSummary // populated by list/get queries
	IsPublished bool
	Category    string
	Tags        []string
	Likes       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserSummary is the public projection of an author joined onto a post.
type UserSummary struct {
	ID       string
	Username string
	Email    string
}

// Favorite marks a post as favorited by a user.  A user can favorite a
// given post at most once.
type Favorite struct {
	ID        string
	UserID    string
	PostID    string
	CreatedAt time.Time
}

// Stats aggregates counters shown on the admin dashboard.
type Stats struct {
	TotalUsers       int
	TotalPosts       int
	UnpublishedPosts int
}
