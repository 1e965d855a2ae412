package domain

import "time"

// MaxPostLen is the maximum number of characters in a post body.
const MaxPostLen = 140

// Post is an immutable short text update authored by a user.
type Post struct {
	ID        int64
	Body      string
	Timestamp time.Time
	UserID    int64

	// Author is populated by listing queries.
	Author *User
}

// Follow is a directed edge of the social graph: Follower follows Followed.
type Follow struct {
	FollowerID int64
	FollowedID int64
}
