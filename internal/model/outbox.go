package model

import "time"

// RepairKind 待补偿的对侧关系。重放时以权威侧为准重新推导，而不是盲目重做 add/remove，
// 因此过期的修复记录不会覆盖之后的切换。
type RepairKind string

const (
	// Subject=follower, Object=followee；以 follows 为准同步 fans
	RepairFollowPair RepairKind = "follow_pair"
	// Subject=owner, Object=wisher；以 idea_collaborators 为准同步 collaboration_wishes
	RepairWishPair RepairKind = "wish_pair"
)

const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxDone       = "done"
)

// Outbox 记录重试耗尽后仍未落地的对侧写入，由 Reconciler 认领重放
type Outbox struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)"`
	Kind        RepairKind `gorm:"type:varchar(16);not null"`
	SubjectID   string     `gorm:"type:varchar(36);not null"`
	ObjectID    string     `gorm:"type:varchar(36);not null"`
	Status      string     `gorm:"type:varchar(16);index"` // pending, processing, done
	Attempts    int
	LastError   string `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"index"`
	ClaimedAt   *time.Time
	ProcessedAt *time.Time
}

func (Outbox) TableName() string { return "outbox" }
