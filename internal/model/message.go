package model

import "time"

// Message 私信（只追加；seen 仅由批量已读翻转）
type Message struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SenderID   string    `gorm:"type:varchar(36);not null;index:idx_msg_pair;index:idx_msg_unseen" json:"sender_id"`
	ReceiverID string    `gorm:"type:varchar(36);not null;index:idx_msg_pair;index:idx_msg_unseen;index:idx_msg_receiver" json:"receiver_id"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	Seen       bool      `gorm:"not null;default:false;index:idx_msg_unseen" json:"seen"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
}

func (Message) TableName() string { return "messages" }
