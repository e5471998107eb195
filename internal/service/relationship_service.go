package service

import (
	"context"
	"errors"

	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/internal/repository"
	"github.com/d60-Lab/ideagraph/pkg/apperror"
)

// ProfileInvalidator drops cached display data after a profile change.
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, id string)
}

// RelationshipService 用户注册钩子与关系链列表
type RelationshipService interface {
	EnsureUser(ctx context.Context, id, name, email string) (*model.User, error)
	ListFollowing(ctx context.Context, userID string, page, pageSize int) ([]model.UserSnapshot, error)
	ListFollowers(ctx context.Context, userID string, page, pageSize int) ([]model.UserSnapshot, error)
}

type relationshipService struct {
	rel      *RelationshipStore
	users    repository.UserRepository
	profiles ProfileResolver
	cache    ProfileInvalidator
}

func NewRelationshipService(rel *RelationshipStore, users repository.UserRepository, profiles ProfileResolver, cache ProfileInvalidator) RelationshipService {
	return &relationshipService{rel: rel, users: users, profiles: profiles, cache: cache}
}

// EnsureUser upserts the display metadata the identity collaborator supplies.
func (s *relationshipService) EnsureUser(ctx context.Context, id, name, email string) (*model.User, error) {
	if id == "" || email == "" {
		return nil, apperror.Validation("user id and email are required")
	}
	u := &model.User{ID: id, Name: name, Email: email}
	if err := s.users.Upsert(ctx, u); err != nil {
		return nil, apperror.Unavailable(err, "register user %s", id)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return u, nil
}

func (s *relationshipService) ListFollowing(ctx context.Context, userID string, page, pageSize int) ([]model.UserSnapshot, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	offset, limit := pageWindow(page, pageSize)
	ids, err := s.rel.FollowingPage(ctx, userID, offset, limit)
	if err != nil {
		return nil, apperror.Unavailable(err, "list following of %s", userID)
	}
	return s.resolve(ctx, ids)
}

// ListFollowers 读取冗余的 followers 侧
func (s *relationshipService) ListFollowers(ctx context.Context, userID string, page, pageSize int) ([]model.UserSnapshot, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	offset, limit := pageWindow(page, pageSize)
	ids, err := s.rel.FollowersPage(ctx, userID, offset, limit)
	if err != nil {
		return nil, apperror.Unavailable(err, "list followers of %s", userID)
	}
	return s.resolve(ctx, ids)
}

func (s *relationshipService) requireUser(ctx context.Context, userID string) error {
	if userID == "" {
		return apperror.Validation("user id is required")
	}
	_, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("user %s not found", userID)
	}
	if err != nil {
		return apperror.Unavailable(err, "read user %s", userID)
	}
	return nil
}

// resolve keeps ids order and drops ids with no user row.
func (s *relationshipService) resolve(ctx context.Context, ids []string) ([]model.UserSnapshot, error) {
	snaps, err := s.profiles.Resolve(ctx, ids)
	if err != nil {
		return nil, apperror.Unavailable(err, "resolve profiles")
	}
	out := make([]model.UserSnapshot, 0, len(ids))
	for _, id := range ids {
		if snap, ok := snaps[id]; ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

func pageWindow(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return (page - 1) * pageSize, pageSize
}
