package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitymsg/backend/internal/config"
	"communitymsg/backend/internal/domain"
	"communitymsg/backend/internal/storage"
	"communitymsg/backend/internal/storage/memory"
)

func testMessagingConfig() config.MessagingConfig {
	return config.MessagingConfig{
		MaxAttachments:    10,
		MaxAttachmentSize: 25 * 1024 * 1024,
		MaxRecipients:     100,
		AllowSelfSend:     true,
		UnreadCacheTTL:    5 * time.Minute,
	}
}

func seedUser(t *testing.T, store storage.Store, id string, role domain.UserRole, active, badge bool, expiresIn time.Duration) {
	t.Helper()
	u := &domain.User{
		ID:          id,
		Email:       id + "@example.com",
		Username:    id,
		FirstName:   "User",
		LastName:    id,
		Role:        role,
		IsActive:    active,
		BadgeHolder: badge,
		CreatedAt:   time.Now().UTC(),
	}
	if expiresIn != 0 {
		exp := time.Now().UTC().Add(expiresIn)
		u.SubscriptionExpiresAt = &exp
	}
	require.NoError(t, store.SaveUser(u))
}

func TestResolveDirect(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "alice", domain.RoleMember, true, false, 0)
	seedUser(t, store, "bob", domain.RoleMember, true, false, 0)
	seedUser(t, store, "inactive", domain.RoleMember, false, false, 0)

	resolver := NewDeliveryResolver(store, testMessagingConfig(), nil)
	now := time.Now().UTC()

	t.Run("单收件人", func(t *testing.T) {
		ids, err := resolver.Resolve("alice", domain.AddressUser("bob"), now)
		require.NoError(t, err)
		assert.Equal(t, []string{"bob"}, ids)
	})

	t.Run("收件人不存在", func(t *testing.T) {
		_, err := resolver.Resolve("alice", domain.AddressUser("ghost"), now)
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})

	t.Run("收件人未激活", func(t *testing.T) {
		_, err := resolver.Resolve("alice", domain.AddressUser("inactive"), now)
		assert.ErrorIs(t, err, ErrRecipientInactive)
	})

	t.Run("配置允许时可以发给自己", func(t *testing.T) {
		ids, err := resolver.Resolve("alice", domain.AddressUser("alice"), now)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, ids)
	})

	t.Run("配置禁止时拒绝发给自己", func(t *testing.T) {
		cfg := testMessagingConfig()
		cfg.AllowSelfSend = false
		strict := NewDeliveryResolver(store, cfg, nil)

		_, err := strict.Resolve("alice", domain.AddressUser("alice"), now)
		assert.ErrorIs(t, err, ErrSelfSendNotAllowed)
	})
}

func TestResolveBroadcast(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "sender", domain.RoleAdmin, true, false, 0)
	seedUser(t, store, "member1", domain.RoleMember, true, false, 0)
	seedUser(t, store, "member2", domain.RoleMember, true, true, 0)
	seedUser(t, store, "inactive", domain.RoleMember, false, true, 0)

	resolver := NewDeliveryResolver(store, testMessagingConfig(), nil)
	now := time.Now().UTC()

	t.Run("广播给注册用户且不含发送者", func(t *testing.T) {
		ids, err := resolver.Resolve("sender", domain.AddressClass(domain.BroadcastRegistered), now)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"member1", "member2"}, ids)
	})

	t.Run("广播给全部用户包含未激活账户", func(t *testing.T) {
		ids, err := resolver.Resolve("sender", domain.AddressClass(domain.BroadcastAll), now)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"member1", "member2", "inactive"}, ids)
	})

	t.Run("广播给徽章持有者", func(t *testing.T) {
		ids, err := resolver.Resolve("sender", domain.AddressClass(domain.BroadcastBadgeHolders), now)
		require.NoError(t, err)
		assert.Equal(t, []string{"member2"}, ids)
	})

	t.Run("未知广播类", func(t *testing.T) {
		_, err := resolver.Resolve("sender", domain.AddressClass("vip"), now)
		assert.ErrorIs(t, err, ErrUnknownPredicate)
	})

	t.Run("解析为空拒绝发送", func(t *testing.T) {
		empty := memory.NewStore()
		seedUser(t, empty, "lonely", domain.RoleMember, true, false, 0)
		r := NewDeliveryResolver(empty, testMessagingConfig(), nil)

		// 唯一的注册用户就是发送者本人
		_, err := r.Resolve("lonely", domain.AddressClass(domain.BroadcastRegistered), now)
		assert.ErrorIs(t, err, ErrNoRecipients)
	})

	t.Run("超出收件人硬上限", func(t *testing.T) {
		cfg := testMessagingConfig()
		cfg.MaxRecipients = 1
		capped := NewDeliveryResolver(store, cfg, nil)

		_, err := capped.Resolve("sender", domain.AddressClass(domain.BroadcastRegistered), now)
		assert.ErrorIs(t, err, ErrAudienceTooLarge)
	})
}

func TestResolveDynamic(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "sender", domain.RoleAdmin, true, false, 0)
	seedUser(t, store, "expiring-soon", domain.RoleVendor, true, false, 3*24*time.Hour)
	seedUser(t, store, "expiring-later", domain.RoleVendor, true, false, 20*24*time.Hour)
	seedUser(t, store, "no-subscription", domain.RoleMember, true, false, 0)
	seedUser(t, store, "admin2", domain.RoleAdmin, true, false, 0)

	resolver := NewDeliveryResolver(store, testMessagingConfig(), nil)
	now := time.Now().UTC()

	t.Run("7天内到期的订阅", func(t *testing.T) {
		ids, err := resolver.Resolve("sender", domain.AddressPredicate("sponsorship_expiring_7d"), now)
		require.NoError(t, err)
		assert.Equal(t, []string{"expiring-soon"}, ids)
	})

	t.Run("30天内到期的订阅", func(t *testing.T) {
		ids, err := resolver.Resolve("sender", domain.AddressPredicate("sponsorship_expiring_30d"), now)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"expiring-soon", "expiring-later"}, ids)
	})

	t.Run("管理员谓词不含发送者", func(t *testing.T) {
		ids, err := resolver.Resolve("sender", domain.AddressPredicate("admins"), now)
		require.NoError(t, err)
		assert.Equal(t, []string{"admin2"}, ids)
	})

	t.Run("白名单外的谓词被拒绝", func(t *testing.T) {
		_, err := resolver.Resolve("sender", domain.AddressPredicate("all_password_hashes"), now)
		assert.ErrorIs(t, err, ErrUnknownPredicate)
	})

	t.Run("注册自定义谓词", func(t *testing.T) {
		resolver.RegisterPredicate(Predicate{
			Name:        "vendors",
			Description: "全部活跃商家",
			Evaluate: func(dir storage.DirectoryRepository, _ time.Time) ([]domain.User, error) {
				return dir.ListUsersByRole(domain.RoleVendor)
			},
		})

		ids, err := resolver.Resolve("sender", domain.AddressPredicate("vendors"), now)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"expiring-soon", "expiring-later"}, ids)
		assert.Contains(t, resolver.Predicates(), "vendors")
	})
}
