package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/ideagraph/internal/model"
)

type IdeaRepository interface {
	Create(ctx context.Context, idea *model.Idea) error
	FindByID(ctx context.Context, id string) (*model.Idea, error)
	ListNewest(ctx context.Context) ([]*model.Idea, error)
	ListByOwners(ctx context.Context, ownerIDs []string) ([]*model.Idea, error)
	ListLikedBy(ctx context.Context, userID string) ([]*model.Idea, error)
	Count(ctx context.Context) (int64, error)
	// Top 返回点赞最多的创意，同票取最新
	Top(ctx context.Context) (*model.Idea, error)
}

type ideaRepository struct{ db *gorm.DB }

func NewIdeaRepository(db *gorm.DB) IdeaRepository { return &ideaRepository{db: db} }

func (r *ideaRepository) Create(ctx context.Context, idea *model.Idea) error {
	return r.db.WithContext(ctx).Create(idea).Error
}

func (r *ideaRepository) FindByID(ctx context.Context, id string) (*model.Idea, error) {
	var idea model.Idea
	if err := r.db.WithContext(ctx).First(&idea, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &idea, nil
}

func (r *ideaRepository) ListNewest(ctx context.Context) ([]*model.Idea, error) {
	res := []*model.Idea{}
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id").Find(&res).Error
	return res, err
}

func (r *ideaRepository) ListByOwners(ctx context.Context, ownerIDs []string) ([]*model.Idea, error) {
	res := []*model.Idea{}
	if len(ownerIDs) == 0 {
		return res, nil
	}
	err := r.db.WithContext(ctx).
		Where("owner_id IN ?", ownerIDs).
		Order("created_at DESC").Order("id").
		Find(&res).Error
	return res, err
}

func (r *ideaRepository) ListLikedBy(ctx context.Context, userID string) ([]*model.Idea, error) {
	res := []*model.Idea{}
	err := r.db.WithContext(ctx).
		Select("ideas.*").
		Joins("JOIN idea_likes ON idea_likes.idea_id = ideas.id").
		Where("idea_likes.user_id = ?", userID).
		Order("ideas.created_at DESC").
		Find(&res).Error
	return res, err
}

func (r *ideaRepository) Count(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Idea{}).Count(&cnt).Error
	return cnt, err
}

func (r *ideaRepository) Top(ctx context.Context) (*model.Idea, error) {
	var idea model.Idea
	err := r.db.WithContext(ctx).
		Order("likes DESC").Order("created_at DESC").
		First(&idea).Error
	if err != nil {
		return nil, translate(err)
	}
	return &idea, nil
}
