package domain

import "time"

// MessageRecipient 表示一条消息对单个收件人的投递记录（扇出记录）。
//
// (MessageID, RecipientID) 组合唯一。删除消息只删除发起者自己的
// 投递记录，不影响其他收件人。
type MessageRecipient struct {
	MessageID   string     `json:"messageId" gorm:"primaryKey;type:varchar(36)"`
	RecipientID string     `json:"recipientId" gorm:"primaryKey;type:varchar(36);index"`
	Read        bool       `json:"read" gorm:"default:false;index"`
	DeliveredAt time.Time  `json:"deliveredAt"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}
