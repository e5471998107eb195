package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/ideagraph/internal/model"
)

// WishRepository 维护 User.collaborationWishes
type WishRepository interface {
	Add(ctx context.Context, userID, wisherID string) error
	Remove(ctx context.Context, userID, wisherID string) error
	Exists(ctx context.Context, userID, wisherID string) (bool, error)
	// WisherIDs 返回 collaborationWishes(userID)，即 userID 收到的意向
	WisherIDs(ctx context.Context, userID string) ([]string, error)
	// WishedUserIDs 反查 collaborationWishes 包含 wisherID 的用户，即 wisherID 给出的意向
	WishedUserIDs(ctx context.Context, wisherID string) ([]string, error)
	Scan(ctx context.Context, offset, limit int) ([]*model.CollaborationWish, error)
}

type wishRepository struct{ db *gorm.DB }

func NewWishRepository(db *gorm.DB) WishRepository { return &wishRepository{db: db} }

func (r *wishRepository) Add(ctx context.Context, userID, wisherID string) error {
	w := &model.CollaborationWish{ID: uuid.New().String(), UserID: userID, WisherID: wisherID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(w).Error
}

func (r *wishRepository) Remove(ctx context.Context, userID, wisherID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND wisher_id = ?", userID, wisherID).
		Delete(&model.CollaborationWish{}).Error
}

func (r *wishRepository) Exists(ctx context.Context, userID, wisherID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.CollaborationWish{}).
		Where("user_id = ? AND wisher_id = ?", userID, wisherID).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *wishRepository) WisherIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&model.CollaborationWish{}).
		Where("user_id = ?", userID).
		Pluck("wisher_id", &ids).Error
	return ids, err
}

func (r *wishRepository) WishedUserIDs(ctx context.Context, wisherID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&model.CollaborationWish{}).
		Where("wisher_id = ?", wisherID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *wishRepository) Scan(ctx context.Context, offset, limit int) ([]*model.CollaborationWish, error) {
	var res []*model.CollaborationWish
	err := r.db.WithContext(ctx).Order("id").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}
