package thread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitymsg/backend/internal/domain"
)

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func msg(id, inReplyTo string, seq int64, offset time.Duration, read bool) domain.InboxMessage {
	return domain.InboxMessage{
		Message: domain.Message{
			ID:        id,
			InReplyTo: inReplyTo,
			Subject:   "subject " + id,
			Content:   "content " + id,
			Seq:       seq,
			CreatedAt: baseTime.Add(offset),
		},
		Read: read,
	}
}

func TestBuild(t *testing.T) {
	t.Run("空输入返回空列表", func(t *testing.T) {
		threads := Build(nil)
		require.NotNil(t, threads)
		assert.Empty(t, threads)
	})

	t.Run("根消息与回复归属同一线程", func(t *testing.T) {
		threads := Build([]domain.InboxMessage{
			msg("root", "", 1, 0, true),
			msg("r1", "root", 2, time.Minute, true),
			msg("r2", "r1", 3, 2*time.Minute, true),
		})

		require.Len(t, threads, 1)
		assert.Equal(t, "root", threads[0].Root.ID)
		require.Len(t, threads[0].Replies, 2)
		// 回复最新在前
		assert.Equal(t, "r2", threads[0].Replies[0].ID)
		assert.Equal(t, "r1", threads[0].Replies[1].ID)
		assert.Equal(t, baseTime.Add(2*time.Minute), threads[0].LastActivity)
	})

	t.Run("父消息缺失的回复提升为根", func(t *testing.T) {
		threads := Build([]domain.InboxMessage{
			msg("orphan", "deleted-parent", 1, 0, false),
		})

		require.Len(t, threads, 1)
		assert.Equal(t, "orphan", threads[0].Root.ID)
		assert.Empty(t, threads[0].Replies)
		assert.True(t, threads[0].IsUnread)
	})

	t.Run("祖先链中断时挂到最近可达祖先", func(t *testing.T) {
		// root 对该用户不可见,r1 提升为根,r2 归属 r1 的线程
		threads := Build([]domain.InboxMessage{
			msg("r1", "invisible-root", 1, 0, true),
			msg("r2", "r1", 2, time.Minute, true),
		})

		require.Len(t, threads, 1)
		assert.Equal(t, "r1", threads[0].Root.ID)
		require.Len(t, threads[0].Replies, 1)
		assert.Equal(t, "r2", threads[0].Replies[0].ID)
	})

	t.Run("引用环终止且环成员各自成孤儿根", func(t *testing.T) {
		// A -> B -> C -> A
		threads := Build([]domain.InboxMessage{
			msg("a", "c", 1, 0, true),
			msg("b", "a", 2, time.Minute, true),
			msg("c", "b", 3, 2*time.Minute, true),
		})

		require.Len(t, threads, 3)
		for _, th := range threads {
			assert.Empty(t, th.Replies, "环成员 %s 不应有回复", th.Root.ID)
		}
	})

	t.Run("环外前缀归属进入环的节点", func(t *testing.T) {
		// d 回复 a,而 a/b/c 构成环
		threads := Build([]domain.InboxMessage{
			msg("a", "c", 1, 0, true),
			msg("b", "a", 2, time.Minute, true),
			msg("c", "b", 3, 2*time.Minute, true),
			msg("d", "a", 4, 3*time.Minute, true),
		})

		require.Len(t, threads, 3)
		var aThread *domain.Thread
		for i := range threads {
			if threads[i].Root.ID == "a" {
				aThread = &threads[i]
			}
		}
		require.NotNil(t, aThread)
		require.Len(t, aThread.Replies, 1)
		assert.Equal(t, "d", aThread.Replies[0].ID)
	})

	t.Run("未读聚合覆盖根与回复", func(t *testing.T) {
		threads := Build([]domain.InboxMessage{
			// 线程一: 根已读但回复未读 => 未读
			msg("t1", "", 1, 0, true),
			msg("t1r", "t1", 2, time.Minute, false),
			// 线程二: 全部已读 => 已读
			msg("t2", "", 3, 2*time.Minute, true),
			msg("t2r", "t2", 4, 3*time.Minute, true),
			// 线程三: 根未读 => 未读
			msg("t3", "", 5, 4*time.Minute, false),
		})

		require.Len(t, threads, 3)
		assert.Equal(t, 2, CountUnread(threads))

		byRoot := make(map[string]bool)
		for _, th := range threads {
			byRoot[th.Root.ID] = th.IsUnread
		}
		assert.True(t, byRoot["t1"])
		assert.False(t, byRoot["t2"])
		assert.True(t, byRoot["t3"])
	})

	t.Run("线程按最近活动倒序", func(t *testing.T) {
		threads := Build([]domain.InboxMessage{
			msg("old", "", 1, 0, true),
			msg("newer", "", 2, time.Hour, true),
			// 老线程收到新回复后排到最前
			msg("reply", "old", 3, 2*time.Hour, true),
		})

		require.Len(t, threads, 2)
		assert.Equal(t, "old", threads[0].Root.ID)
		assert.Equal(t, "newer", threads[1].Root.ID)
	})

	t.Run("同刻消息按插入序号决定顺序", func(t *testing.T) {
		threads := Build([]domain.InboxMessage{
			msg("root", "", 1, 0, true),
			msg("r1", "root", 2, time.Minute, true),
			msg("r2", "root", 3, time.Minute, true),
		})

		require.Len(t, threads, 1)
		require.Len(t, threads[0].Replies, 2)
		// 同一时刻,后插入的在前
		assert.Equal(t, "r2", threads[0].Replies[0].ID)
		assert.Equal(t, "r1", threads[0].Replies[1].ID)

		roots := Build([]domain.InboxMessage{
			msg("ra", "", 1, 0, true),
			msg("rb", "", 2, 0, true),
		})
		require.Len(t, roots, 2)
		assert.Equal(t, "rb", roots[0].Root.ID)
		assert.Equal(t, "ra", roots[1].Root.ID)
	})

	t.Run("构建不修改输入消息", func(t *testing.T) {
		input := []domain.InboxMessage{
			msg("root", "", 1, 0, false),
			msg("r1", "root", 2, time.Minute, true),
		}
		Build(input)

		assert.Equal(t, "root", input[0].ID)
		assert.Equal(t, "", input[0].InReplyTo)
		assert.False(t, input[0].Read)
		assert.Equal(t, "root", input[1].InReplyTo)
	})
}

func TestThreadReplyCount(t *testing.T) {
	threads := Build([]domain.InboxMessage{
		msg("root", "", 1, 0, true),
		msg("r1", "root", 2, time.Minute, true),
		msg("r2", "root", 3, 2*time.Minute, true),
	})

	require.Len(t, threads, 1)
	assert.Equal(t, 2, threads[0].ReplyCount())
}
