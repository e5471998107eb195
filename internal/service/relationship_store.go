package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/internal/repository"
)

// partialWriteError 第一侧已落地、对侧写入失败。Repair 描述如何让两侧重新一致。
type partialWriteError struct {
	Repair Repair
	Err    error
}

func (e *partialWriteError) Error() string {
	return fmt.Sprintf("%s %s/%s: inverse side not applied: %v", e.Repair.Kind, e.Repair.SubjectID, e.Repair.ObjectID, e.Err)
}

func (e *partialWriteError) Unwrap() error { return e.Err }

func asPartial(err error) (*partialWriteError, bool) {
	var pe *partialWriteError
	ok := errors.As(err, &pe)
	return pe, ok
}

// RelationshipStore 持有 following / followers / collaborationWishes 三个集合。
// following 为权威侧，followers 为冗余侧；每次写入两侧都是幂等的单行增删，
// 因此整次重放即可修复部分失败。
type RelationshipStore struct {
	follows repository.FollowRepository
	fans    repository.FanRepository
	wishes  repository.WishRepository
}

func NewRelationshipStore(follows repository.FollowRepository, fans repository.FanRepository, wishes repository.WishRepository) *RelationshipStore {
	return &RelationshipStore{follows: follows, fans: fans, wishes: wishes}
}

// AddFollow 写入 follower ∈ followers(followee) 与 followee ∈ following(follower)
func (s *RelationshipStore) AddFollow(ctx context.Context, followerID, followeeID string) error {
	if err := s.follows.Create(ctx, followerID, followeeID); err != nil {
		return err
	}
	if err := s.fans.Create(ctx, followeeID, followerID); err != nil {
		return &partialWriteError{Repair: followRepair(followerID, followeeID), Err: err}
	}
	return nil
}

func (s *RelationshipStore) RemoveFollow(ctx context.Context, followerID, followeeID string) error {
	if err := s.follows.Delete(ctx, followerID, followeeID); err != nil {
		return err
	}
	if err := s.fans.Delete(ctx, followeeID, followerID); err != nil {
		return &partialWriteError{Repair: followRepair(followerID, followeeID), Err: err}
	}
	return nil
}

// SyncFollowPair 以 following 侧为准修正 followers 侧，返回是否做了修改
func (s *RelationshipStore) SyncFollowPair(ctx context.Context, followerID, followeeID string) (bool, error) {
	following, err := s.follows.Exists(ctx, followerID, followeeID)
	if err != nil {
		return false, err
	}
	fan, err := s.fans.Exists(ctx, followeeID, followerID)
	if err != nil {
		return false, err
	}
	switch {
	case following && !fan:
		return true, s.fans.Create(ctx, followeeID, followerID)
	case !following && fan:
		return true, s.fans.Delete(ctx, followeeID, followerID)
	}
	return false, nil
}

func (s *RelationshipStore) AddCollabWish(ctx context.Context, ownerID, wisherID string) error {
	return s.wishes.Add(ctx, ownerID, wisherID)
}

func (s *RelationshipStore) RemoveCollabWish(ctx context.Context, ownerID, wisherID string) error {
	return s.wishes.Remove(ctx, ownerID, wisherID)
}

func (s *RelationshipStore) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	return s.follows.Exists(ctx, followerID, followeeID)
}

func (s *RelationshipStore) HasFollower(ctx context.Context, userID, fanID string) (bool, error) {
	return s.fans.Exists(ctx, userID, fanID)
}

func (s *RelationshipStore) HasCollabWish(ctx context.Context, ownerID, wisherID string) (bool, error) {
	return s.wishes.Exists(ctx, ownerID, wisherID)
}

// Following returns the full following set of userID.
func (s *RelationshipStore) Following(ctx context.Context, userID string) ([]string, error) {
	return s.follows.FolloweeIDs(ctx, userID)
}

func (s *RelationshipStore) FollowingPage(ctx context.Context, userID string, offset, limit int) ([]string, error) {
	items, err := s.follows.ListFollowings(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(items))
	for i, it := range items {
		res[i] = it.FolloweeID
	}
	return res, nil
}

func (s *RelationshipStore) FollowersPage(ctx context.Context, userID string, offset, limit int) ([]string, error) {
	items, err := s.fans.ListFans(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(items))
	for i, it := range items {
		res[i] = it.FanID
	}
	return res, nil
}

// CollabWishes returns collaborationWishes(userID): users who wish to join userID's ideas.
func (s *RelationshipStore) CollabWishes(ctx context.Context, userID string) ([]string, error) {
	return s.wishes.WisherIDs(ctx, userID)
}

// WishedBy is the reverse lookup: users whose collaborationWishes contain userID.
func (s *RelationshipStore) WishedBy(ctx context.Context, userID string) ([]string, error) {
	return s.wishes.WishedUserIDs(ctx, userID)
}

func followRepair(followerID, followeeID string) Repair {
	return Repair{Kind: model.RepairFollowPair, SubjectID: followerID, ObjectID: followeeID}
}

func wishRepair(ownerID, wisherID string) Repair {
	return Repair{Kind: model.RepairWishPair, SubjectID: ownerID, ObjectID: wisherID}
}
