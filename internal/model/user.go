package model

import "time"

// User 用户（仅关系链与展示所需字段，凭证由认证服务持有）
type User struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Name      string `gorm:"type:varchar(128)"`
	Email     string `gorm:"type:varchar(255);uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string { return "users" }

// DisplayName falls back to the email when no name was registered.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// UserSnapshot is the display metadata other views embed.
type UserSnapshot struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{ID: u.ID, Name: u.DisplayName(), Email: u.Email}
}
