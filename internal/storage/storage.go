package storage

import (
	"errors"
	"time"

	"communitymsg/backend/internal/domain"
)

var (
	// ErrMessageNotFound 消息不存在
	ErrMessageNotFound = errors.New("message not found")
	// ErrRecipientNotFound 投递记录不存在
	ErrRecipientNotFound = errors.New("recipient record not found")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateRecipient (messageID, recipientID) 投递记录重复
	ErrDuplicateRecipient = errors.New("duplicate recipient record")
)

// MessageRepository 定义消息与投递记录的存取操作。
type MessageRepository interface {
	// CreateMessage 原子地写入消息本体、附件元数据与全部扇出
	// 投递记录：要么全部成功，要么全部失败，不允许出现
	// 部分投递的消息。
	CreateMessage(message *domain.Message, recipients []*domain.MessageRecipient) error

	// GetMessage 按 ID 取消息本体（含附件元数据），不做访问控制。
	GetMessage(id string) (*domain.Message, error)

	// ListMessagesForUser 返回用户可见的全部消息（作为发件人或
	// 拥有投递记录），附带该用户自己的已读状态；发件人视角的
	// 自发消息视为已读。结果不做线程化。
	ListMessagesForUser(userID string) ([]domain.InboxMessage, error)

	// GetRecipient 取单条投递记录。
	GetRecipient(messageID, recipientID string) (*domain.MessageRecipient, error)

	// ListRecipients 列出消息的全部投递记录。
	ListRecipients(messageID string) ([]domain.MessageRecipient, error)

	// MarkRead 将投递记录置为已读。幂等：已读时不改写 ReadAt。
	// 不存在投递记录时返回 ErrRecipientNotFound。
	MarkRead(messageID, recipientID string, at time.Time) error

	// DeleteRecipient 删除单条投递记录，其他收件人不受影响。
	DeleteRecipient(messageID, recipientID string) error

	// DeleteMessage 删除消息本体及其附件与剩余投递记录。
	// 仅在发起者是发件人且无其他收件人保留副本时由服务层调用。
	DeleteMessage(id string) error

	// CountRecipients 返回消息现存投递记录数。
	CountRecipients(messageID string) (int, error)
}

// DirectoryRepository 定义用户目录的只读查询。
//
// 消息子系统把用户目录当作外部只读数据源；SaveUser 仅供
// 初始化导入与测试填充使用。
type DirectoryRepository interface {
	SaveUser(user *domain.User) error
	GetUser(id string) (*domain.User, error)
	ListAllUsers() ([]domain.User, error)
	ListActiveUsers() ([]domain.User, error)
	ListBadgeHolders() ([]domain.User, error)
	ListUsersByRole(role domain.UserRole) ([]domain.User, error)
	// ListUsersBySubscriptionExpiry 返回订阅到期时间落在
	// [from, to) 区间内的活跃用户，动态受众谓词使用。
	ListUsersBySubscriptionExpiry(from, to time.Time) ([]domain.User, error)
}

// UnreadCache 定义每用户未读线程数的旁路缓存。
// 缓存丢失无害：读路径总能从线程构建结果重算。
type UnreadCache interface {
	GetUnreadCount(userID string) (int, bool, error)
	SetUnreadCount(userID string, count int, ttl time.Duration) error
	InvalidateUnread(userIDs ...string) error
}

// Store 定义完整的存储接口。
type Store interface {
	MessageRepository
	DirectoryRepository

	Close() error
	Health() error
}
