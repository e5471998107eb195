package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/ideagraph/internal/model"
)

// LikeResult 点赞切换后的状态
type LikeResult struct {
	Liked bool
	Likes int64
}

// Collaboration 协作者与创意归属，供对账使用
type Collaboration struct {
	IdeaID  string
	OwnerID string
	UserID  string
}

// EngagementRepository 维护 collaborators / likedBy / likes / likeTimestamps
type EngagementRepository interface {
	AddCollaborator(ctx context.Context, ideaID, userID string) error
	RemoveCollaborator(ctx context.Context, ideaID, userID string) error
	IsCollaborator(ctx context.Context, ideaID, userID string) (bool, error)
	CollaboratorIDs(ctx context.Context, ideaID string) ([]string, error)
	CollaboratorsByIdea(ctx context.Context, ideaIDs []string) (map[string][]string, error)
	// CollaboratesWithOwner 判断 userID 是否仍在 ownerID 任一创意的协作者中
	CollaboratesWithOwner(ctx context.Context, ownerID, userID string) (bool, error)
	ScanCollaborations(ctx context.Context, offset, limit int) ([]Collaboration, error)

	ToggleLike(ctx context.Context, ideaID, userID string, now time.Time, loc *time.Location) (LikeResult, error)
	IsLiked(ctx context.Context, ideaID, userID string) (bool, error)
	LikeTimestamps(ctx context.Context, ideaID, fromDate string) (model.LikeTimestamps, error)
	CountLikesByDate(ctx context.Context, ideaID, fromDate, toDate string) (map[string]int, error)
	// RecountLikes 修正 likes 与 likedBy 基数不一致的创意，返回修正条数
	RecountLikes(ctx context.Context) (int64, error)
}

type engagementRepository struct{ db *gorm.DB }

func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

func (r *engagementRepository) AddCollaborator(ctx context.Context, ideaID, userID string) error {
	c := &model.IdeaCollaborator{ID: uuid.New().String(), IdeaID: ideaID, UserID: userID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c).Error
}

func (r *engagementRepository) RemoveCollaborator(ctx context.Context, ideaID, userID string) error {
	return r.db.WithContext(ctx).
		Where("idea_id = ? AND user_id = ?", ideaID, userID).
		Delete(&model.IdeaCollaborator{}).Error
}

func (r *engagementRepository) IsCollaborator(ctx context.Context, ideaID, userID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.IdeaCollaborator{}).
		Where("idea_id = ? AND user_id = ?", ideaID, userID).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *engagementRepository) CollaboratorIDs(ctx context.Context, ideaID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&model.IdeaCollaborator{}).
		Where("idea_id = ?", ideaID).
		Order("created_at").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *engagementRepository) CollaboratorsByIdea(ctx context.Context, ideaIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ideaIDs))
	if len(ideaIDs) == 0 {
		return out, nil
	}
	var rows []model.IdeaCollaborator
	if err := r.db.WithContext(ctx).
		Where("idea_id IN ?", ideaIDs).
		Order("created_at").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.IdeaID] = append(out[row.IdeaID], row.UserID)
	}
	return out, nil
}

func (r *engagementRepository) CollaboratesWithOwner(ctx context.Context, ownerID, userID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.IdeaCollaborator{}).
		Joins("JOIN ideas ON ideas.id = idea_collaborators.idea_id").
		Where("ideas.owner_id = ? AND idea_collaborators.user_id = ?", ownerID, userID).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *engagementRepository) ScanCollaborations(ctx context.Context, offset, limit int) ([]Collaboration, error) {
	var res []Collaboration
	err := r.db.WithContext(ctx).
		Table("idea_collaborators").
		Select("idea_collaborators.idea_id AS idea_id, ideas.owner_id AS owner_id, idea_collaborators.user_id AS user_id").
		Joins("JOIN ideas ON ideas.id = idea_collaborators.idea_id").
		Order("idea_collaborators.id").
		Offset(offset).Limit(limit).
		Scan(&res).Error
	return res, err
}

// ToggleLike 在单个事务内翻转 likedBy 成员、调整 likes（不小于 0）并维护日期分桶。
// 取消点赞只删除与 now 完全相等的时刻；桶内没有匹配项时保持原样。
func (r *engagementRepository) ToggleLike(ctx context.Context, ideaID, userID string, now time.Time, loc *time.Location) (LikeResult, error) {
	var res LikeResult
	now = now.UTC()
	dateKey := model.DateKey(now, loc)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var idea model.Idea
		if err := tx.Select("id").First(&idea, "id = ?", ideaID).Error; err != nil {
			return translate(err)
		}

		del := tx.Where("idea_id = ? AND user_id = ?", ideaID, userID).Delete(&model.IdeaLike{})
		if del.Error != nil {
			return del.Error
		}

		if del.RowsAffected > 0 {
			if err := tx.Model(&model.Idea{}).Where("id = ?", ideaID).
				Update("likes", gorm.Expr("CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END")).Error; err != nil {
				return err
			}
			var bucket []model.LikeEvent
			if err := tx.Where("idea_id = ? AND date = ?", ideaID, dateKey).Find(&bucket).Error; err != nil {
				return err
			}
			var matched []string
			for _, ev := range bucket {
				if ev.LikedAt.Equal(now) {
					matched = append(matched, ev.ID)
				}
			}
			if len(matched) > 0 {
				if err := tx.Where("id IN ?", matched).Delete(&model.LikeEvent{}).Error; err != nil {
					return err
				}
			}
		} else {
			like := &model.IdeaLike{ID: uuid.New().String(), IdeaID: ideaID, UserID: userID}
			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(like)
			if ins.Error != nil {
				return ins.Error
			}
			if ins.RowsAffected > 0 {
				if err := tx.Model(&model.Idea{}).Where("id = ?", ideaID).
					Update("likes", gorm.Expr("likes + 1")).Error; err != nil {
					return err
				}
				ev := &model.LikeEvent{ID: uuid.New().String(), IdeaID: ideaID, Date: dateKey, LikedAt: now}
				if err := tx.Create(ev).Error; err != nil {
					return err
				}
			}
			res.Liked = true
		}

		var after model.Idea
		if err := tx.Select("likes").First(&after, "id = ?", ideaID).Error; err != nil {
			return err
		}
		res.Likes = after.Likes
		return nil
	})
	return res, err
}

func (r *engagementRepository) IsLiked(ctx context.Context, ideaID, userID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.IdeaLike{}).
		Where("idea_id = ? AND user_id = ?", ideaID, userID).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *engagementRepository) LikeTimestamps(ctx context.Context, ideaID, fromDate string) (model.LikeTimestamps, error) {
	var events []model.LikeEvent
	q := r.db.WithContext(ctx).Where("idea_id = ?", ideaID)
	if fromDate != "" {
		q = q.Where("date >= ?", fromDate)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return model.NewLikeTimestamps(events), nil
}

func (r *engagementRepository) CountLikesByDate(ctx context.Context, ideaID, fromDate, toDate string) (map[string]int, error) {
	type row struct {
		Date  string
		Count int
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&model.LikeEvent{}).
		Select("date, COUNT(*) AS count").
		Where("idea_id = ? AND date >= ? AND date <= ?", ideaID, fromDate, toDate).
		Group("date").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, rw := range rows {
		out[rw.Date] = rw.Count
	}
	return out, nil
}

func (r *engagementRepository) RecountLikes(ctx context.Context) (int64, error) {
	actual := "(SELECT COUNT(*) FROM idea_likes WHERE idea_likes.idea_id = ideas.id)"
	res := r.db.WithContext(ctx).Model(&model.Idea{}).
		Where("likes <> " + actual).
		Update("likes", gorm.Expr(actual))
	return res.RowsAffected, res.Error
}
