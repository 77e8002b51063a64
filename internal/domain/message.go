package domain

import "time"

// MessageType 消息的投递类型。
type MessageType string

const (
	// MessageTypeDirect 单个收件人的站内私信
	MessageTypeDirect MessageType = "direct"
	// MessageTypeBroadcastAll 面向全部用户的广播
	MessageTypeBroadcastAll MessageType = "broadcast_all"
	// MessageTypeBroadcastRegistered 面向已激活注册用户的广播
	MessageTypeBroadcastRegistered MessageType = "broadcast_registered"
	// MessageTypeBroadcastBadgeHolders 面向徽章持有者的广播
	MessageTypeBroadcastBadgeHolders MessageType = "broadcast_badge_holders"
	// MessageTypeDynamicAudience 由命名谓词在发送时计算的动态受众
	MessageTypeDynamicAudience MessageType = "dynamic_audience"
)

// Message 表示一条站内消息（线程根消息或回复）。
//
// 消息本体只保存一份；每个收件人的已读/删除状态由
// MessageRecipient 扇出记录独立维护。
type Message struct {
	ID       string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Seq      int64       `json:"seq" gorm:"autoIncrement;uniqueIndex"` // 插入序号，时间戳相同时用于稳定排序
	SenderID string      `json:"senderId" gorm:"type:varchar(36);index;not null"`
	Subject  string      `json:"subject" gorm:"type:varchar(500)"`
	Content  string      `json:"content" gorm:"type:text"`
	Type     MessageType `json:"type" gorm:"type:varchar(32);index"`
	// InReplyTo 指向父消息 ID；为空表示线程根消息。
	InReplyTo  string    `json:"inReplyTo,omitempty" gorm:"type:varchar(36);index"`
	TemplateID string    `json:"templateId,omitempty" gorm:"type:varchar(64)"` // 由模板生成时记录模板 ID
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Attachments []*Attachment `json:"attachments,omitempty" gorm:"-"` // 附件元数据，由存储层单独加载
}

// IsRoot 判断消息是否为线程根消息。
func (m *Message) IsRoot() bool {
	return m.InReplyTo == ""
}

// InboxMessage 是针对某个查看者的消息视图：消息本体加上
// 该查看者自己的已读状态。发件人查看自己发出的消息时视为已读。
type InboxMessage struct {
	Message
	Read   bool       `json:"read"`
	ReadAt *time.Time `json:"readAt,omitempty"`
}
