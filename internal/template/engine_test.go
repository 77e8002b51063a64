package template

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"communitymsg/backend/internal/domain"
)

func testUser() *domain.User {
	expires := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.User{
		ID:                    "u1",
		Email:                 "pat@example.com",
		Username:              "pat",
		FirstName:             "Pat",
		LastName:              "Lee",
		Role:                  domain.RoleMember,
		IsActive:              true,
		SubscriptionExpiresAt: &expires,
	}
}

func TestNewEngine(t *testing.T) {
	t.Run("白名单外占位符加载即失败", func(t *testing.T) {
		_, err := NewEngine([]domain.MessageTemplate{
			{ID: "bad", Subject: "Hi", Content: "secret: {{passwordHash}}"},
		}, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownPlaceholder)
	})

	t.Run("残留的占位符语法加载即失败", func(t *testing.T) {
		_, err := NewEngine([]domain.MessageTemplate{
			{ID: "bad", Subject: "Hi", Content: "hello {{firstName"},
		}, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedTemplate)
	})

	t.Run("模板ID重复加载即失败", func(t *testing.T) {
		_, err := NewEngine([]domain.MessageTemplate{
			{ID: "dup", Subject: "A", Content: "a"},
			{ID: "dup", Subject: "B", Content: "b"},
		}, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateTemplate)
	})

	t.Run("内置模板全部通过校验", func(t *testing.T) {
		engine, err := NewEngine(DefaultTemplates(), zap.NewNop())
		require.NoError(t, err)
		assert.NotEmpty(t, engine.List())
	})
}

func TestEngineGet(t *testing.T) {
	engine, err := NewEngine(DefaultTemplates(), zap.NewNop())
	require.NoError(t, err)

	t.Run("存在的模板", func(t *testing.T) {
		tmpl, err := engine.Get("sponsorship_renewal")
		require.NoError(t, err)
		assert.Equal(t, "Reminder: Renew Your Sponsorship Benefits", tmpl.Subject)
		assert.Equal(t, domain.TargetDynamicQuery, tmpl.Target)
	})

	t.Run("不存在的模板", func(t *testing.T) {
		_, err := engine.Get("no-such-template")
		assert.ErrorIs(t, err, ErrTemplateNotFound)
	})
}

func TestEngineRender(t *testing.T) {
	engine, err := NewEngine(DefaultTemplates(), zap.NewNop())
	require.NoError(t, err)

	t.Run("续费提醒按收件人资料渲染", func(t *testing.T) {
		rendered, err := engine.Render("sponsorship_renewal", testUser())
		require.NoError(t, err)

		assert.Equal(t, "Reminder: Renew Your Sponsorship Benefits", rendered.Subject)
		assert.Contains(t, rendered.Content, "Pat")
		assert.Contains(t, rendered.Content, "2025-01-01")
		assert.NotContains(t, rendered.Content, "{{")
	})

	t.Run("缺失字段渲染为空串且无字面占位符", func(t *testing.T) {
		user := testUser()
		user.SubscriptionExpiresAt = nil

		rendered, err := engine.Render("sponsorship_renewal", user)
		require.NoError(t, err)
		assert.NotContains(t, rendered.Subject, "{{")
		assert.NotContains(t, rendered.Content, "{{")
	})

	t.Run("占位符两侧的空白被接受", func(t *testing.T) {
		engine, err := NewEngine([]domain.MessageTemplate{
			{ID: "spaced", Subject: "Hi {{ firstName }}", Content: "Dear {{  username  }}"},
		}, zap.NewNop())
		require.NoError(t, err)

		rendered, err := engine.Render("spaced", testUser())
		require.NoError(t, err)
		assert.Equal(t, "Hi Pat", rendered.Subject)
		assert.Equal(t, "Dear pat", rendered.Content)
	})
}

func TestLoadFile(t *testing.T) {
	t.Run("文件覆盖同ID的内置模板", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "templates.yaml")
		yamlBody := strings.Join([]string{
			"templates:",
			"  - id: sponsorship_renewal",
			"    subject: Custom Renewal Subject",
			"    content: Hello {{firstName}}",
			"    target: dynamic_query",
			"    targetQuery: sponsorship_expiring_7d",
		}, "\n")
		require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

		templates, err := LoadFile(path)
		require.NoError(t, err)

		var found *domain.MessageTemplate
		for i := range templates {
			if templates[i].ID == "sponsorship_renewal" {
				found = &templates[i]
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, "Custom Renewal Subject", found.Subject)
		// 其余内置模板仍在
		assert.Greater(t, len(templates), 1)
	})

	t.Run("文件不存在返回错误", func(t *testing.T) {
		_, err := LoadFile("/nonexistent/templates.yaml")
		assert.Error(t, err)
	})
}
