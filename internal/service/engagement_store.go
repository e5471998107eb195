package service

import (
	"context"
	"time"

	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/internal/repository"
)

// EngagementStore 持有创意的 collaborators / likedBy / likes / likeTimestamps。
// 协作者写入与创意主人的 collaborationWishes 成对出现，协作者一侧为权威侧。
type EngagementStore struct {
	eng repository.EngagementRepository
	rel *RelationshipStore
	loc *time.Location
}

func NewEngagementStore(eng repository.EngagementRepository, rel *RelationshipStore, loc *time.Location) *EngagementStore {
	if loc == nil {
		loc = time.UTC
	}
	return &EngagementStore{eng: eng, rel: rel, loc: loc}
}

// Location is the calendar used for like buckets.
func (s *EngagementStore) Location() *time.Location { return s.loc }

func (s *EngagementStore) AddCollaborator(ctx context.Context, idea *model.Idea, userID string) error {
	if err := s.eng.AddCollaborator(ctx, idea.ID, userID); err != nil {
		return err
	}
	if err := s.rel.AddCollabWish(ctx, idea.OwnerID, userID); err != nil {
		return &partialWriteError{Repair: wishRepair(idea.OwnerID, userID), Err: err}
	}
	return nil
}

// RemoveCollaborator 仅当用户不再协作该主人的任何创意时才撤回意向
func (s *EngagementStore) RemoveCollaborator(ctx context.Context, idea *model.Idea, userID string) error {
	if err := s.eng.RemoveCollaborator(ctx, idea.ID, userID); err != nil {
		return err
	}
	still, err := s.eng.CollaboratesWithOwner(ctx, idea.OwnerID, userID)
	if err != nil {
		return &partialWriteError{Repair: wishRepair(idea.OwnerID, userID), Err: err}
	}
	if still {
		return nil
	}
	if err := s.rel.RemoveCollabWish(ctx, idea.OwnerID, userID); err != nil {
		return &partialWriteError{Repair: wishRepair(idea.OwnerID, userID), Err: err}
	}
	return nil
}

// SyncWishPair 以协作者集合为准修正 collaborationWishes(owner) 中的 wisher，返回是否做了修改
func (s *EngagementStore) SyncWishPair(ctx context.Context, ownerID, wisherID string) (bool, error) {
	collaborates, err := s.eng.CollaboratesWithOwner(ctx, ownerID, wisherID)
	if err != nil {
		return false, err
	}
	wished, err := s.rel.HasCollabWish(ctx, ownerID, wisherID)
	if err != nil {
		return false, err
	}
	switch {
	case collaborates && !wished:
		return true, s.rel.AddCollabWish(ctx, ownerID, wisherID)
	case !collaborates && wished:
		return true, s.rel.RemoveCollabWish(ctx, ownerID, wisherID)
	}
	return false, nil
}

func (s *EngagementStore) IsCollaborator(ctx context.Context, ideaID, userID string) (bool, error) {
	return s.eng.IsCollaborator(ctx, ideaID, userID)
}

func (s *EngagementStore) Collaborators(ctx context.Context, ideaID string) ([]string, error) {
	return s.eng.CollaboratorIDs(ctx, ideaID)
}

func (s *EngagementStore) CollaboratorsByIdea(ctx context.Context, ideaIDs []string) (map[string][]string, error) {
	return s.eng.CollaboratorsByIdea(ctx, ideaIDs)
}

// ToggleLike flips userID's membership in likedBy at instant now.
func (s *EngagementStore) ToggleLike(ctx context.Context, ideaID, userID string, now time.Time) (repository.LikeResult, error) {
	return s.eng.ToggleLike(ctx, ideaID, userID, now, s.loc)
}

func (s *EngagementStore) LikeTimestamps(ctx context.Context, ideaID, fromDate string) (model.LikeTimestamps, error) {
	return s.eng.LikeTimestamps(ctx, ideaID, fromDate)
}

// LikeCounts returns per-date like counts for dates in [fromDate, toDate].
func (s *EngagementStore) LikeCounts(ctx context.Context, ideaID, fromDate, toDate string) (map[string]int, error) {
	return s.eng.CountLikesByDate(ctx, ideaID, fromDate, toDate)
}
