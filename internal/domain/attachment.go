package domain

// Attachment 表示消息附件的元数据。
//
// 附件字节由对象存储服务保管，这里只保存其返回的稳定 URL
// 与基本元数据，不落原始内容。
type Attachment struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MessageID   string `json:"messageId" gorm:"type:varchar(36);index;not null"`
	Filename    string `json:"filename" gorm:"type:varchar(255)"`
	URL         string `json:"url" gorm:"type:varchar(1000)"` // 对象存储返回的可解引用地址
	ContentType string `json:"contentType" gorm:"type:varchar(100)"`
	Size        int64  `json:"size"`
}
