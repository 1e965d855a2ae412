package service

import (
	"context"

	"microblog/internal/repository"
)

// SocialService manages who follows whom.
// It does not reject self edges; callers decide whether those are allowed.
type SocialService interface {
	Follow(ctx context.Context, followerID, followedID int64) error
	Unfollow(ctx context.Context, followerID, followedID int64) error
	IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error)
	Counts(ctx context.Context, userID int64) (FollowCounts, error)
}

// FollowCounts summarizes a user's position in the graph.
type FollowCounts struct {
	Followers int
	Following int
}

type socialService struct {
	follows repository.FollowRepository
}

func NewSocialService(follows repository.FollowRepository) SocialService {
	return &socialService{follows: follows}
}

func (s *socialService) Follow(ctx context.Context, followerID, followedID int64) error {
	exists, err := s.follows.Exists(ctx, followerID, followedID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.follows.Insert(ctx, followerID, followedID)
}

func (s *socialService) Unfollow(ctx context.Context, followerID, followedID int64) error {
	exists, err := s.follows.Exists(ctx, followerID, followedID)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return s.follows.Delete(ctx, followerID, followedID)
}

func (s *socialService) IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error) {
	return s.follows.Exists(ctx, followerID, followedID)
}

func (s *socialService) Counts(ctx context.Context, userID int64) (FollowCounts, error) {
	followers, err := s.follows.CountFollowers(ctx, userID)
	if err != nil {
		return FollowCounts{}, err
	}
	following, err := s.follows.CountFollowing(ctx, userID)
	if err != nil {
		return FollowCounts{}, err
	}
	return FollowCounts{Followers: followers, Following: following}, nil
}
