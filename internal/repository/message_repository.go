package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/ideagraph/internal/model"
)

// MessageRepository 私信日志：追加 + 按发送方/接收方/已读过滤查询
type MessageRepository interface {
	Create(ctx context.Context, m *model.Message) error
	// Between 返回两人之间双向消息，按时间升序
	Between(ctx context.Context, userA, userB string) ([]*model.Message, error)
	// MarkSeen 将 sender->receiver 的未读消息全部置为已读，返回影响条数
	MarkSeen(ctx context.Context, senderID, receiverID string) (int64, error)
	// CounterpartIDs 返回与 userID 有过任意方向消息往来的用户
	CounterpartIDs(ctx context.Context, userID string) ([]string, error)
	// UnseenCounts 按发送方统计发给 receiverID 的未读消息数
	UnseenCounts(ctx context.Context, receiverID string) (map[string]int64, error)
}

type messageRepository struct{ db *gorm.DB }

func NewMessageRepository(db *gorm.DB) MessageRepository { return &messageRepository{db: db} }

func (r *messageRepository) Create(ctx context.Context, m *model.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *messageRepository) Between(ctx context.Context, userA, userB string) ([]*model.Message, error) {
	res := []*model.Message{}
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userA, userB, userB, userA).
		Order("timestamp ASC").Order("id").
		Find(&res).Error
	return res, err
}

func (r *messageRepository) MarkSeen(ctx context.Context, senderID, receiverID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND seen = ?", senderID, receiverID, false).
		Update("seen", true)
	return res.RowsAffected, res.Error
}

func (r *messageRepository) CounterpartIDs(ctx context.Context, userID string) ([]string, error) {
	var sent, received []string
	if err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("sender_id = ?", userID).
		Distinct().Pluck("receiver_id", &sent).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("receiver_id = ?", userID).
		Distinct().Pluck("sender_id", &received).Error; err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(sent)+len(received))
	out := make([]string, 0, len(sent)+len(received))
	for _, id := range append(sent, received...) {
		if _, ok := seen[id]; ok || id == userID {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func (r *messageRepository) UnseenCounts(ctx context.Context, receiverID string) (map[string]int64, error) {
	type row struct {
		SenderID string
		Count    int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("sender_id, COUNT(*) AS count").
		Where("receiver_id = ? AND seen = ?", receiverID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.SenderID] = rw.Count
	}
	return out, nil
}
