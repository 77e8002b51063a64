package smtp

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInquiry(t *testing.T) {
	t.Run("纯文本消息", func(t *testing.T) {
		raw := strings.Join([]string{
			"From: user@example.com",
			"To: bug-report@msg.example.com",
			"Subject: Login broken",
			"",
			"The login page returns a 500 error.",
		}, "\r\n")

		parsed, err := ParseInquiry([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "Login broken", parsed.Subject)
		assert.Equal(t, "user@example.com", parsed.From)
		assert.Equal(t, "The login page returns a 500 error.", parsed.Body)
	})

	t.Run("multipart 优先取纯文本部分", func(t *testing.T) {
		raw := strings.Join([]string{
			"From: user@example.com",
			"Subject: Feedback",
			"Content-Type: multipart/alternative; boundary=xyz",
			"",
			"--xyz",
			"Content-Type: text/html; charset=utf-8",
			"",
			"<p>html version</p>",
			"--xyz",
			"Content-Type: text/plain; charset=utf-8",
			"",
			"plain version",
			"--xyz--",
			"",
		}, "\r\n")

		parsed, err := ParseInquiry([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "plain version", strings.TrimSpace(parsed.Body))
	})

	t.Run("没有纯文本时降级到 HTML", func(t *testing.T) {
		raw := strings.Join([]string{
			"From: user@example.com",
			"Subject: Feedback",
			"Content-Type: multipart/alternative; boundary=xyz",
			"",
			"--xyz",
			"Content-Type: text/html; charset=utf-8",
			"",
			"<p>html only</p>",
			"--xyz--",
			"",
		}, "\r\n")

		parsed, err := ParseInquiry([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "<p>html only</p>", strings.TrimSpace(parsed.Body))
	})

	t.Run("base64 传输编码", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString([]byte("encoded body"))
		raw := strings.Join([]string{
			"From: user@example.com",
			"Subject: Encoded",
			"Content-Type: text/plain; charset=utf-8",
			"Content-Transfer-Encoding: base64",
			"",
			encoded,
		}, "\r\n")

		parsed, err := ParseInquiry([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "encoded body", parsed.Body)
	})

	t.Run("quoted-printable 传输编码", func(t *testing.T) {
		raw := strings.Join([]string{
			"From: user@example.com",
			"Subject: QP",
			"Content-Type: text/plain; charset=utf-8",
			"Content-Transfer-Encoding: quoted-printable",
			"",
			"caf=C3=A9",
		}, "\r\n")

		parsed, err := ParseInquiry([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "café", parsed.Body)
	})

	t.Run("编码主题按 RFC 2047 解码", func(t *testing.T) {
		raw := strings.Join([]string{
			"From: user@example.com",
			"Subject: =?UTF-8?B?6ZyA5rGC5Y+N6aaI?=",
			"",
			"body",
		}, "\r\n")

		parsed, err := ParseInquiry([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "需求反馈", parsed.Subject)
	})

	t.Run("缺少头部的输入报错", func(t *testing.T) {
		_, err := ParseInquiry([]byte("no headers at all"))
		assert.Error(t, err)
	})
}

func TestConnectionLimiter(t *testing.T) {
	limiter := NewConnectionLimiter(2, 600)

	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.False(t, limiter.Acquire(), "超过并发上限应被拒绝")
	assert.Equal(t, 2, limiter.Current())

	limiter.Release()
	assert.True(t, limiter.Acquire())
}
