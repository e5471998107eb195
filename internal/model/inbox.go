package model

// InboxEntry 聊天收件箱条目（派生视图，每次请求重新计算，不落库）
type InboxEntry struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	UnseenCount         int64  `json:"unseenCount"`
	WishesToCollaborate bool   `json:"wishesToCollaborate"` // 对方希望参与当前用户的创意
	WishedByCurrentUser bool   `json:"wishedByCurrentUser"` // 当前用户希望参与对方的创意
}

// FeedItem 信息流条目：创意 + 关注状态 + 扁平化协作者 ID
type FeedItem struct {
	Idea
	Followed      bool     `json:"followed"`
	Collaborators []string `json:"collaborators"`
}

// LikeCount 某日点赞数
type LikeCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}
