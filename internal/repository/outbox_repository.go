package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/ideagraph/internal/model"
)

// OutboxRepository 持久化待补偿的对侧写入
type OutboxRepository interface {
	Enqueue(ctx context.Context, kind model.RepairKind, subjectID, objectID string) error
	// Claim 认领至多 limit 条 pending 记录（以及租约超时的 processing 记录）
	Claim(ctx context.Context, limit int, lease time.Duration) ([]*model.Outbox, error)
	MarkDone(ctx context.Context, id string) error
	Release(ctx context.Context, id string, cause error) error
	CountPending(ctx context.Context) (int64, error)
}

type outboxRepository struct{ db *gorm.DB }

func NewOutboxRepository(db *gorm.DB) OutboxRepository { return &outboxRepository{db: db} }

func (r *outboxRepository) Enqueue(ctx context.Context, kind model.RepairKind, subjectID, objectID string) error {
	ob := &model.Outbox{
		ID:        uuid.New().String(),
		Kind:      kind,
		SubjectID: subjectID,
		ObjectID:  objectID,
		Status:    model.OutboxPending,
		CreatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Create(ob).Error
}

// Claim 逐条条件更新抢占，兼容不支持 SKIP LOCKED 的 sqlite
func (r *outboxRepository) Claim(ctx context.Context, limit int, lease time.Duration) ([]*model.Outbox, error) {
	now := time.Now()
	var candidates []*model.Outbox
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND claimed_at < ?)", model.OutboxPending, model.OutboxProcessing, now.Add(-lease)).
		Order("created_at").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]*model.Outbox, 0, len(candidates))
	for _, ob := range candidates {
		res := r.db.WithContext(ctx).Model(&model.Outbox{}).
			Where("id = ? AND status = ?", ob.ID, ob.Status).
			Updates(map[string]any{"status": model.OutboxProcessing, "claimed_at": now})
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 1 {
			ob.Status = model.OutboxProcessing
			ob.ClaimedAt = &now
			claimed = append(claimed, ob)
		}
	}
	return claimed, nil
}

func (r *outboxRepository) MarkDone(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.Outbox{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": model.OutboxDone, "processed_at": now}).Error
}

func (r *outboxRepository) Release(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.db.WithContext(ctx).Model(&model.Outbox{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     model.OutboxPending,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
		}).Error
}

func (r *outboxRepository) CountPending(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Outbox{}).
		Where("status <> ?", model.OutboxDone).
		Count(&cnt).Error
	return cnt, err
}
