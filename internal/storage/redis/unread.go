package redis

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const unreadKeyPrefix = "communitymsg:unread:"

// GetUnreadCount 读取用户未读线程数缓存。
// 返回的 bool 表示是否命中；缓存缺失不是错误。
func (c *Client) GetUnreadCount(userID string) (int, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	val, err := c.rdb.Get(ctx, unreadKeyPrefix+userID).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		// 缓存内容损坏按未命中处理
		return 0, false, nil
	}
	return count, true, nil
}

// SetUnreadCount 写入用户未读线程数缓存。
func (c *Client) SetUnreadCount(userID string, count int, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	return c.rdb.Set(ctx, unreadKeyPrefix+userID, strconv.Itoa(count), ttl).Err()
}

// InvalidateUnread 批量失效未读缓存（发送/已读/删除后调用）。
func (c *Client) InvalidateUnread(userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = unreadKeyPrefix + id
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	return c.rdb.Del(ctx, keys...).Err()
}
