package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "this-is-a-valid-test-secret-32-chars"

func TestLoad(t *testing.T) {
	t.Run("默认值", func(t *testing.T) {
		t.Setenv("COMMUNITYMSG_JWT_SECRET", testSecret)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 10, cfg.Messaging.MaxAttachments)
		assert.Equal(t, int64(25*1024*1024), cfg.Messaging.MaxAttachmentSize)
		assert.Equal(t, 10000, cfg.Messaging.MaxRecipients)
		assert.True(t, cfg.Messaging.AllowSelfSend)
		assert.Equal(t, 5*time.Minute, cfg.Messaging.UnreadCacheTTL)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "", cfg.Database.Type)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "communitymsg", cfg.JWT.Issuer)
		assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
		assert.Equal(t, "community.local", cfg.Contact.SMTPDomain)
	})

	t.Run("环境变量覆盖默认值", func(t *testing.T) {
		t.Setenv("COMMUNITYMSG_JWT_SECRET", testSecret)
		t.Setenv("COMMUNITYMSG_SERVER_PORT", "9090")
		t.Setenv("COMMUNITYMSG_MESSAGING_MAX_RECIPIENTS", "500")
		t.Setenv("COMMUNITYMSG_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
		t.Setenv("COMMUNITYMSG_CONTACT_SMTP_DOMAIN", "MSG.Example.COM")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 500, cfg.Messaging.MaxRecipients)
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
		// 网关域名统一小写,便于收件人校验
		assert.Equal(t, "msg.example.com", cfg.Contact.SMTPDomain)
	})

	t.Run("拒绝默认 JWT 密钥", func(t *testing.T) {
		t.Setenv("COMMUNITYMSG_JWT_SECRET", "change-me-in-production")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SECURITY ERROR")
	})

	t.Run("拒绝过短 JWT 密钥", func(t *testing.T) {
		t.Setenv("COMMUNITYMSG_JWT_SECRET", "short")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "32 characters")
	})

	t.Run("收件人上限必须为正数", func(t *testing.T) {
		t.Setenv("COMMUNITYMSG_JWT_SECRET", testSecret)
		t.Setenv("COMMUNITYMSG_MESSAGING_MAX_RECIPIENTS", "0")

		_, err := Load()
		assert.Error(t, err)
	})
}
