package model

import (
	"sort"
	"time"
)

// Idea 创意帖
type Idea struct {
	ID           string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID      string  `gorm:"type:varchar(36);index:idx_idea_owner;not null" json:"user_id"`
	Name         string  `gorm:"type:varchar(128)" json:"name"`
	Email        string  `gorm:"type:varchar(255)" json:"email"`
	Title        string  `gorm:"type:varchar(255);not null" json:"title"`
	Description  string  `gorm:"type:text" json:"description"`
	Domain       string  `gorm:"type:varchar(64)" json:"domain"`
	Budget       float64 `json:"budget"`
	ProjectStage string  `gorm:"type:varchar(64)" json:"project_stage"`
	Location     string  `gorm:"type:varchar(128)" json:"location"`
	File         string  `gorm:"type:varchar(255)" json:"file,omitempty"`
	// Likes == |likedBy|，与 IdeaLike 在同一事务中维护
	Likes     int64     `gorm:"not null;default:0;index:idx_idea_likes" json:"likes"`
	CreatedAt time.Time `gorm:"index:idx_idea_created" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Idea) TableName() string { return "ideas" }

// IdeaCollaborator 申请协作的用户（Idea.collaborators）
type IdeaCollaborator struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	IdeaID    string `gorm:"type:varchar(36);not null;index:idx_collab_pair,unique;index:idx_collab_idea"`
	UserID    string `gorm:"type:varchar(36);not null;index:idx_collab_pair,unique"`
	CreatedAt time.Time
}

func (IdeaCollaborator) TableName() string { return "idea_collaborators" }

// IdeaLike 点赞成员（Idea.likedBy）
type IdeaLike struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	IdeaID    string `gorm:"type:varchar(36);not null;index:idx_like_pair,unique"`
	UserID    string `gorm:"type:varchar(36);not null;index:idx_like_pair,unique;index:idx_like_user"`
	CreatedAt time.Time
}

func (IdeaLike) TableName() string { return "idea_likes" }

// LikeEvent 一次点赞时刻，按日期分桶（Idea.likeTimestamps）
type LikeEvent struct {
	ID      string    `gorm:"primaryKey;type:varchar(36)"`
	IdeaID  string    `gorm:"type:varchar(36);not null;index:idx_like_event_bucket"`
	Date    string    `gorm:"type:varchar(10);not null;index:idx_like_event_bucket"` // YYYY-MM-DD
	LikedAt time.Time `gorm:"not null"`
}

func (LikeEvent) TableName() string { return "like_events" }

// DateLayout is the bucket key format of LikeTimestamps.
const DateLayout = "2006-01-02"

// DateKey returns the calendar date of t in loc.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// LikeTimestamps maps a calendar date to the ordered like instants of that day.
type LikeTimestamps map[string][]time.Time

// NewLikeTimestamps buckets events by their stored date, each bucket ascending.
func NewLikeTimestamps(events []LikeEvent) LikeTimestamps {
	lt := make(LikeTimestamps)
	for _, e := range events {
		lt[e.Date] = append(lt[e.Date], e.LikedAt)
	}
	for d := range lt {
		bucket := lt[d]
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].Before(bucket[j]) })
	}
	return lt
}

// Append records an instant in its date bucket, keeping the bucket ordered.
func (lt LikeTimestamps) Append(at time.Time, loc *time.Location) {
	key := DateKey(at, loc)
	bucket := lt[key]
	i := sort.Search(len(bucket), func(i int) bool { return bucket[i].After(at) })
	bucket = append(bucket, time.Time{})
	copy(bucket[i+1:], bucket[i:])
	bucket[i] = at
	lt[key] = bucket
}

// RemoveInstant drops entries equal to at from its bucket. A bucket with no
// matching entry is left untouched and false is returned.
func (lt LikeTimestamps) RemoveInstant(at time.Time, loc *time.Location) bool {
	key := DateKey(at, loc)
	bucket, ok := lt[key]
	if !ok {
		return false
	}
	kept := bucket[:0:0]
	for _, ts := range bucket {
		if !ts.Equal(at) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == len(bucket) {
		return false
	}
	lt[key] = kept
	return true
}

// Count returns the number of likes recorded on date.
func (lt LikeTimestamps) Count(date string) int {
	return len(lt[date])
}

// Total returns the number of recorded instants across all buckets.
func (lt LikeTimestamps) Total() int {
	n := 0
	for _, b := range lt {
		n += len(b)
	}
	return n
}
