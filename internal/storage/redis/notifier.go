package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"communitymsg/backend/internal/notify"
)

const messageChannel = "communitymsg:message_created"

// MessageCreated 把消息事件发布到 Redis 频道，供外部推送层
// （WebSocket 网关等协作方）订阅消费。实现 notify.Notifier。
func (c *Client) MessageCreated(ctx context.Context, event notify.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal message event: %w", err)
	}

	if err := c.rdb.Publish(ctx, messageChannel, payload).Err(); err != nil {
		c.log.Warn("failed to publish message event",
			zap.String("messageId", event.Message.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
