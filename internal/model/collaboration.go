package model

import "time"

// CollaborationWish 协作意向：WisherID 希望参与 UserID 的创意
// 即 User(UserID).collaborationWishes 包含 WisherID
type CollaborationWish struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	UserID    string `gorm:"type:varchar(36);not null;index:idx_wish_pair,unique;index:idx_wish_user"`
	WisherID  string `gorm:"type:varchar(36);not null;index:idx_wish_pair,unique;index:idx_wish_wisher"`
	CreatedAt time.Time
}

func (CollaborationWish) TableName() string { return "collaboration_wishes" }
