package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitymsg/backend/internal/domain"
	"communitymsg/backend/internal/storage"
)

func newMessage(id, sender string) *domain.Message {
	now := time.Now().UTC()
	return &domain.Message{
		ID:        id,
		SenderID:  sender,
		Subject:   "subject " + id,
		Content:   "content " + id,
		Type:      domain.MessageTypeDirect,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func recipientsFor(messageID string, ids ...string) []*domain.MessageRecipient {
	now := time.Now().UTC()
	recs := make([]*domain.MessageRecipient, len(ids))
	for i, id := range ids {
		recs[i] = &domain.MessageRecipient{
			MessageID:   messageID,
			RecipientID: id,
			DeliveredAt: now,
		}
	}
	return recs
}

func TestCreateMessage(t *testing.T) {
	t.Run("消息与全部投递记录一起写入", func(t *testing.T) {
		store := NewStore()
		msg := newMessage("m1", "alice")

		require.NoError(t, store.CreateMessage(msg, recipientsFor("m1", "bob", "carol", "dave")))

		count, err := store.CountRecipients("m1")
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		got, err := store.GetMessage("m1")
		require.NoError(t, err)
		assert.Equal(t, "subject m1", got.Subject)
	})

	t.Run("重复收件人整体拒绝", func(t *testing.T) {
		store := NewStore()
		msg := newMessage("m1", "alice")

		err := store.CreateMessage(msg, recipientsFor("m1", "bob", "bob"))
		require.ErrorIs(t, err, storage.ErrDuplicateRecipient)

		// 原子性:没有写入任何东西
		_, err = store.GetMessage("m1")
		assert.ErrorIs(t, err, storage.ErrMessageNotFound)
	})

	t.Run("插入序号单调递增", func(t *testing.T) {
		store := NewStore()
		m1 := newMessage("m1", "alice")
		m2 := newMessage("m2", "alice")

		require.NoError(t, store.CreateMessage(m1, recipientsFor("m1", "bob")))
		require.NoError(t, store.CreateMessage(m2, recipientsFor("m2", "bob")))

		assert.Greater(t, m2.Seq, m1.Seq)
	})

	t.Run("附件随消息保存", func(t *testing.T) {
		store := NewStore()
		msg := newMessage("m1", "alice")
		msg.Attachments = []*domain.Attachment{
			{ID: "a1", Filename: "photo.jpg", ContentType: "image/jpeg", Size: 1024, URL: "https://files.example.com/a1"},
		}

		require.NoError(t, store.CreateMessage(msg, recipientsFor("m1", "bob")))

		got, err := store.GetMessage("m1")
		require.NoError(t, err)
		require.Len(t, got.Attachments, 1)
		assert.Equal(t, "photo.jpg", got.Attachments[0].Filename)
		assert.Equal(t, "m1", got.Attachments[0].MessageID)
	})
}

func TestListMessagesForUser(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.CreateMessage(newMessage("m1", "alice"), recipientsFor("m1", "bob")))
	require.NoError(t, store.CreateMessage(newMessage("m2", "bob"), recipientsFor("m2", "alice")))
	require.NoError(t, store.CreateMessage(newMessage("m3", "alice"), recipientsFor("m3", "carol")))

	t.Run("发件与收件都可见", func(t *testing.T) {
		messages, err := store.ListMessagesForUser("alice")
		require.NoError(t, err)
		require.Len(t, messages, 3)
		// 按插入序号升序
		assert.Equal(t, "m1", messages[0].ID)
		assert.Equal(t, "m2", messages[1].ID)
		assert.Equal(t, "m3", messages[2].ID)
	})

	t.Run("发件人视角视为已读", func(t *testing.T) {
		messages, err := store.ListMessagesForUser("alice")
		require.NoError(t, err)

		for _, m := range messages {
			if m.SenderID == "alice" {
				assert.True(t, m.Read, "发出的消息 %s 应视为已读", m.ID)
			} else {
				assert.False(t, m.Read, "收到的消息 %s 初始未读", m.ID)
			}
		}
	})

	t.Run("无关用户看不到", func(t *testing.T) {
		messages, err := store.ListMessagesForUser("nobody")
		require.NoError(t, err)
		assert.Empty(t, messages)
	})
}

func TestMarkRead(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.CreateMessage(newMessage("m1", "alice"), recipientsFor("m1", "bob")))

	t.Run("翻转并记录时间", func(t *testing.T) {
		at := time.Now().UTC()
		require.NoError(t, store.MarkRead("m1", "bob", at))

		rec, err := store.GetRecipient("m1", "bob")
		require.NoError(t, err)
		assert.True(t, rec.Read)
		require.NotNil(t, rec.ReadAt)
		assert.Equal(t, at, *rec.ReadAt)
	})

	t.Run("重复标记保留首次时间", func(t *testing.T) {
		first, err := store.GetRecipient("m1", "bob")
		require.NoError(t, err)

		require.NoError(t, store.MarkRead("m1", "bob", time.Now().UTC().Add(time.Hour)))

		again, err := store.GetRecipient("m1", "bob")
		require.NoError(t, err)
		assert.Equal(t, first.ReadAt, again.ReadAt)
	})

	t.Run("投递记录不存在", func(t *testing.T) {
		err := store.MarkRead("m1", "nobody", time.Now().UTC())
		assert.ErrorIs(t, err, storage.ErrRecipientNotFound)
	})
}

func TestDeleteRecipient(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.CreateMessage(newMessage("m1", "alice"), recipientsFor("m1", "bob", "carol")))

	require.NoError(t, store.DeleteRecipient("m1", "bob"))

	_, err := store.GetRecipient("m1", "bob")
	assert.ErrorIs(t, err, storage.ErrRecipientNotFound)

	// carol 的记录不受影响
	_, err = store.GetRecipient("m1", "carol")
	assert.NoError(t, err)

	// bob 的可见列表随之清空
	messages, err := store.ListMessagesForUser("bob")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestDeleteMessage(t *testing.T) {
	store := NewStore()
	msg := newMessage("m1", "alice")
	msg.Attachments = []*domain.Attachment{{ID: "a1", Filename: "f.txt"}}
	require.NoError(t, store.CreateMessage(msg, recipientsFor("m1", "bob")))

	require.NoError(t, store.DeleteMessage("m1"))

	_, err := store.GetMessage("m1")
	assert.ErrorIs(t, err, storage.ErrMessageNotFound)

	_, err = store.GetRecipient("m1", "bob")
	assert.ErrorIs(t, err, storage.ErrRecipientNotFound)

	messages, err := store.ListMessagesForUser("alice")
	require.NoError(t, err)
	assert.Empty(t, messages)

	assert.ErrorIs(t, store.DeleteMessage("m1"), storage.ErrMessageNotFound)
}

func TestDirectory(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()
	soon := now.Add(3 * 24 * time.Hour)
	later := now.Add(40 * 24 * time.Hour)

	users := []*domain.User{
		{ID: "u1", Username: "u1", Role: domain.RoleMember, IsActive: true},
		{ID: "u2", Username: "u2", Role: domain.RoleVendor, IsActive: true, BadgeHolder: true, SubscriptionExpiresAt: &soon},
		{ID: "u3", Username: "u3", Role: domain.RoleVendor, IsActive: true, SubscriptionExpiresAt: &later},
		{ID: "u4", Username: "u4", Role: domain.RoleAdmin, IsActive: true},
		{ID: "u5", Username: "u5", Role: domain.RoleMember, IsActive: false, BadgeHolder: true},
	}
	for _, u := range users {
		require.NoError(t, store.SaveUser(u))
	}

	t.Run("按角色过滤且只含活跃用户", func(t *testing.T) {
		admins, err := store.ListUsersByRole(domain.RoleAdmin)
		require.NoError(t, err)
		require.Len(t, admins, 1)
		assert.Equal(t, "u4", admins[0].ID)
	})

	t.Run("徽章持有者不含未激活账户", func(t *testing.T) {
		holders, err := store.ListBadgeHolders()
		require.NoError(t, err)
		require.Len(t, holders, 1)
		assert.Equal(t, "u2", holders[0].ID)
	})

	t.Run("订阅到期窗口为左闭右开", func(t *testing.T) {
		expiring, err := store.ListUsersBySubscriptionExpiry(now, now.Add(7*24*time.Hour))
		require.NoError(t, err)
		require.Len(t, expiring, 1)
		assert.Equal(t, "u2", expiring[0].ID)
	})

	t.Run("读取返回副本", func(t *testing.T) {
		u, err := store.GetUser("u1")
		require.NoError(t, err)
		u.Username = "mutated"

		fresh, err := store.GetUser("u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", fresh.Username)
	})

	t.Run("用户不存在", func(t *testing.T) {
		_, err := store.GetUser("ghost")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})
}
