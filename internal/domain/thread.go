package domain

import "time"

// Thread 是线程构建器的派生视图，不落库：一个根消息加上经由
// InReplyTo 链可达的全部回复。
//
// IsUnread 聚合整个线程的未读状态：根消息或任意回复对查看者
// 未读时整个线程视为未读，即使根消息早已读过。
type Thread struct {
	Root         *InboxMessage   `json:"root"`
	Replies      []*InboxMessage `json:"replies"` // 展示用，按创建时间倒序
	IsUnread     bool            `json:"isUnread"`
	LastActivity time.Time       `json:"lastActivity"` // 根与全部回复中最新的创建时间
}

// ReplyCount 返回线程内回复数量。
func (t *Thread) ReplyCount() int {
	return len(t.Replies)
}
