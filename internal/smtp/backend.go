package smtp

import (
	"fmt"
	"io"
	"strings"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"communitymsg/backend/internal/config"
	"communitymsg/backend/internal/domain"
	"communitymsg/backend/internal/monitoring"
	"communitymsg/backend/internal/service"
)

// 联系地址的本地部分到模板的映射
var inquiryTemplates = map[string]string{
	"bug-report":      "contact_bug_report",
	"feature-request": "contact_feature_request",
	"feedback":        "contact_feedback",
}

// Backend 实现 go-smtp 的 Backend 接口。
//
// 这是一个只接收邮件的联系网关（Receiving-Only）：
// 只接受发往本系统联系地址的来件，解析后以系统账户身份
// 转成站内信投递给全体管理员。不支持对外发送，不做中继。
type Backend struct {
	messages *service.MessageService
	cfg      config.ContactConfig
	limiter  *ConnectionLimiter
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewBackend 创建 SMTP Backend。
func NewBackend(messages *service.MessageService, cfg config.ContactConfig, metrics *monitoring.Metrics, log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{
		messages: messages,
		cfg:      cfg,
		limiter:  NewConnectionLimiter(cfg.SMTPMaxConns, cfg.SMTPMaxPerMinute),
		metrics:  metrics,
		log:      log,
	}
}

// NewSession 创建新的 SMTP 会话,超出连接或速率限制时拒绝。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	if !b.limiter.Acquire() {
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "too many connections, try again later",
		}
	}
	return &session{backend: b}, nil
}

type session struct {
	backend     *Backend
	fromAddress string
	categories  []string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = from
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 只接受发往本系统联系地址的邮件。域名必须匹配配置的联系
// 域名,本地部分必须是已知的来件类别,其余一律 550 拒绝,
// 确保不会被用作邮件中继。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := strings.ToLower(strings.TrimSpace(to))

	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}
	local, recipientDomain := parts[0], parts[1]

	if !strings.EqualFold(recipientDomain, s.backend.cfg.SMTPDomain) {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied - domain not managed by this server",
		}
	}

	if _, ok := inquiryTemplates[local]; !ok {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "recipient address not found",
		}
	}

	s.categories = append(s.categories, local)
	return nil
}

// Data 处理邮件内容,解析后转为站内信投递给管理员。
func (s *session) Data(r io.Reader) error {
	rawBytes, err := io.ReadAll(io.LimitReader(r, 1<<20)) // 1MB
	if err != nil {
		return err
	}

	parsed, err := ParseInquiry(rawBytes)
	if err != nil {
		return fmt.Errorf("parse inquiry: %w", err)
	}

	body := parsed.Body
	if parsed.Subject != "" {
		body = fmt.Sprintf("主题: %s\n\n%s", parsed.Subject, body)
	}
	if s.fromAddress != "" {
		body = fmt.Sprintf("%s\n\n联系邮箱: %s", body, s.fromAddress)
	}

	for _, category := range s.categories {
		addressing := domain.AddressPredicate("admins")
		_, err := s.backend.messages.DispatchTemplate(service.DispatchTemplateInput{
			TemplateID:    inquiryTemplates[category],
			SenderID:      s.backend.cfg.SenderID,
			Addressing:    &addressing,
			AppendContent: body,
		})
		if err != nil {
			s.backend.log.Warn("contact inquiry dispatch failed",
				zap.String("category", category),
				zap.String("from", s.fromAddress),
				zap.Error(err))
			return err
		}

		if s.backend.metrics != nil {
			s.backend.metrics.RecordContactInquiry(strings.ReplaceAll(category, "-", "_"))
		}
	}

	return nil
}

// AuthPlain 处理 PLAIN 认证（此处允许匿名）。
func (s *session) AuthPlain(username, password string) error {
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.categories = nil
}

// Logout 结束会话并释放连接配额。
func (s *session) Logout() error {
	s.backend.limiter.Release()
	return nil
}
