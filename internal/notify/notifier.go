// Package notify 定义消息创建后的通知分发接口。
//
// 核心消息逻辑不依赖任何实时推送机制：通知器是注入的可选
// 依赖，在消息成功落库后被调用，失败只记日志，绝不回滚已
// 持久化的消息。
package notify

import (
	"context"

	"communitymsg/backend/internal/domain"
)

// Event 一次成功投递的消息事件。
type Event struct {
	Message      *domain.Message `json:"message"`
	RecipientIDs []string        `json:"recipientIds"`
}

// Notifier 消息事件分发接口。
type Notifier interface {
	// MessageCreated 在消息与扇出记录落库成功后调用。
	MessageCreated(ctx context.Context, event Event) error
}

// Nop 空通知器，关闭实时通知时使用。
type Nop struct{}

// MessageCreated 空操作。
func (Nop) MessageCreated(context.Context, Event) error { return nil }
