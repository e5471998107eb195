package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/ideagraph/internal/model"
	"github.com/d60-Lab/ideagraph/internal/repository"
	"github.com/d60-Lab/ideagraph/pkg/apperror"
	"github.com/d60-Lab/ideagraph/pkg/validator"
)

// IdeaInput 提交创意的字段，File 为外部存储返回的引用（可选）
type IdeaInput struct {
	Title        string  `json:"title" validate:"required,max=255"`
	Description  string  `json:"description" validate:"required"`
	Domain       string  `json:"domain" validate:"required,max=64"`
	Budget       float64 `json:"budget" validate:"gt=0"`
	ProjectStage string  `json:"project_stage" validate:"required,max=64"`
	Location     string  `json:"location" validate:"required,max=128"`
	File         string  `json:"file" validate:"max=255"`
}

// IdeaService 创意提交与列表查询
type IdeaService interface {
	Submit(ctx context.Context, ownerID string, in IdeaInput) (*model.Idea, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Idea, error)
	ListLikedBy(ctx context.Context, userID string) ([]*model.Idea, error)
	Collaborators(ctx context.Context, ideaID string) ([]model.UserSnapshot, error)
	IdeaOfTheDay(ctx context.Context) (*model.Idea, error)
	Count(ctx context.Context) (int64, error)
}

type ideaService struct {
	ideas    repository.IdeaRepository
	users    repository.UserRepository
	eng      *EngagementStore
	profiles ProfileResolver
	now      func() time.Time
}

func NewIdeaService(ideas repository.IdeaRepository, users repository.UserRepository, eng *EngagementStore, profiles ProfileResolver) IdeaService {
	return &ideaService{ideas: ideas, users: users, eng: eng, profiles: profiles, now: time.Now}
}

// Submit copies the owner's display name and email onto the new idea.
func (s *ideaService) Submit(ctx context.Context, ownerID string, in IdeaInput) (*model.Idea, error) {
	if ownerID == "" {
		return nil, apperror.Validation("owner id is required")
	}
	if msg := validator.Struct(in); msg != "" {
		return nil, apperror.Validation("%s", msg)
	}
	owner, err := s.users.FindByID(ctx, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("user %s not found", ownerID)
	}
	if err != nil {
		return nil, apperror.Unavailable(err, "read user %s", ownerID)
	}

	now := s.now().UTC()
	idea := &model.Idea{
		ID:           uuid.New().String(),
		OwnerID:      owner.ID,
		Name:         owner.DisplayName(),
		Email:        owner.Email,
		Title:        in.Title,
		Description:  in.Description,
		Domain:       in.Domain,
		Budget:       in.Budget,
		ProjectStage: in.ProjectStage,
		Location:     in.Location,
		File:         in.File,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.ideas.Create(ctx, idea); err != nil {
		return nil, apperror.Unavailable(err, "store idea")
	}
	return idea, nil
}

func (s *ideaService) ListByOwner(ctx context.Context, ownerID string) ([]*model.Idea, error) {
	if ownerID == "" {
		return nil, apperror.Validation("user id is required")
	}
	ideas, err := s.ideas.ListByOwners(ctx, []string{ownerID})
	if err != nil {
		return nil, apperror.Unavailable(err, "list ideas of %s", ownerID)
	}
	return ideas, nil
}

func (s *ideaService) ListLikedBy(ctx context.Context, userID string) ([]*model.Idea, error) {
	if userID == "" {
		return nil, apperror.Validation("user id is required")
	}
	ideas, err := s.ideas.ListLikedBy(ctx, userID)
	if err != nil {
		return nil, apperror.Unavailable(err, "list ideas liked by %s", userID)
	}
	return ideas, nil
}

// Collaborators resolves the idea's collaborators in request order.
func (s *ideaService) Collaborators(ctx context.Context, ideaID string) ([]model.UserSnapshot, error) {
	if ideaID == "" {
		return nil, apperror.Validation("idea id is required")
	}
	if _, err := s.ideas.FindByID(ctx, ideaID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("idea %s not found", ideaID)
		}
		return nil, apperror.Unavailable(err, "read idea %s", ideaID)
	}
	ids, err := s.eng.Collaborators(ctx, ideaID)
	if err != nil {
		return nil, apperror.Unavailable(err, "read collaborators of idea %s", ideaID)
	}
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

// IdeaOfTheDay is the most liked idea, newest first on ties.
func (s *ideaService) IdeaOfTheDay(ctx context.Context) (*model.Idea, error) {
	idea, err := s.ideas.Top(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("no ideas yet")
	}
	if err != nil {
		return nil, apperror.Unavailable(err, "read top idea")
	}
	return idea, nil
}

func (s *ideaService) Count(ctx context.Context) (int64, error) {
	n, err := s.ideas.Count(ctx)
	if err != nil {
		return 0, apperror.Unavailable(err, "count ideas")
	}
	return n, nil
}
