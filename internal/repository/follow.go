package repository

import "context"

// FollowRepository manages the directed follower edge set.
type FollowRepository interface {
	Init(ctx context.Context) error
	// Insert adds the edge; inserting an existing edge is a no-op.
	Insert(ctx context.Context, followerID, followedID int64) error
	// Delete removes the edge; deleting a missing edge is a no-op.
	Delete(ctx context.Context, followerID, followedID int64) error
	Exists(ctx context.Context, followerID, followedID int64) (bool, error)
	CountFollowers(ctx context.Context, userID int64) (int, error)
	CountFollowing(ctx context.Context, userID int64) (int, error)
}
