// Package template 实现消息模板注册表与渲染引擎。
//
// 模板在启动时一次性加载，运行期不可变。占位符采用
// {{name}} 语法，只允许引用白名单内的收件人资料字段，防止
// 模板意外泄露未授权的资料字段。渲染失败一律 fail closed：
// 绝不把原始 {{token}} 语法下发给最终用户。
package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"communitymsg/backend/internal/domain"
)

var (
	// ErrTemplateNotFound 模板不存在
	ErrTemplateNotFound = errors.New("template not found")
	// ErrUnknownPlaceholder 模板引用了白名单外的占位符
	ErrUnknownPlaceholder = errors.New("template references unknown placeholder")
	// ErrMalformedTemplate 模板含有无法解析的 {{ 残留
	ErrMalformedTemplate = errors.New("template contains malformed placeholder syntax")
	// ErrDuplicateTemplate 模板 ID 重复
	ErrDuplicateTemplate = errors.New("duplicate template id")
)

// placeholderPattern 匹配 {{name}} 形式的占位符。
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z][a-zA-Z0-9_]*)\s*\}\}`)

// allowedFields 占位符允许引用的收件人资料字段白名单。
var allowedFields = map[string]struct{}{
	"firstName":      {},
	"lastName":       {},
	"username":       {},
	"email":          {},
	"expirationDate": {},
}

// Engine 聚合不可变模板注册表与渲染逻辑。
type Engine struct {
	templates map[string]domain.MessageTemplate
	log       *zap.Logger
}

// NewEngine 构建模板引擎。
//
// 每个模板在加载时即做占位符校验：引用白名单外字段返回
// ErrUnknownPlaceholder，残留无法解析的 {{ 返回
// ErrMalformedTemplate——坏模板阻止启动，而不是在发送时炸给用户。
func NewEngine(templates []domain.MessageTemplate, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	byID := make(map[string]domain.MessageTemplate, len(templates))
	for _, t := range templates {
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTemplate, t.ID)
		}
		if err := validatePattern(t.Subject); err != nil {
			return nil, fmt.Errorf("template %s subject: %w", t.ID, err)
		}
		if err := validatePattern(t.Content); err != nil {
			return nil, fmt.Errorf("template %s content: %w", t.ID, err)
		}
		byID[t.ID] = t
	}
	return &Engine{templates: byID, log: log}, nil
}

// Get 按 ID 取模板。
func (e *Engine) Get(id string) (*domain.MessageTemplate, error) {
	t, ok := e.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return &t, nil
}

// List 返回全部模板的快照。
func (e *Engine) List() []domain.MessageTemplate {
	result := make([]domain.MessageTemplate, 0, len(e.templates))
	for _, t := range e.templates {
		result = append(result, t)
	}
	return result
}

// Render 按收件人资料渲染模板。
//
// 白名单内但取不到值的占位符渲染为空串并记一条告警；
// 输出保证不含字面 {{。
func (e *Engine) Render(id string, recipient *domain.User) (*domain.RenderedTemplate, error) {
	t, err := e.Get(id)
	if err != nil {
		return nil, err
	}

	fields := profileFields(recipient)
	render := func(pattern string) string {
		return placeholderPattern.ReplaceAllStringFunc(pattern, func(match string) string {
			name := placeholderPattern.FindStringSubmatch(match)[1]
			value, ok := fields[name]
			if !ok || value == "" {
				e.log.Warn("template placeholder unresolved, rendered empty",
					zap.String("template", t.ID),
					zap.String("placeholder", name),
					zap.String("recipient", recipient.ID),
				)
				return ""
			}
			return value
		})
	}

	return &domain.RenderedTemplate{
		Subject: render(t.Subject),
		Content: render(t.Content),
	}, nil
}

// validatePattern 校验模板片段：占位符必须在白名单内，
// 且不得残留无法解析的 {{。
func validatePattern(pattern string) error {
	for _, m := range placeholderPattern.FindAllStringSubmatch(pattern, -1) {
		if _, ok := allowedFields[m[1]]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPlaceholder, m[1])
		}
	}
	stripped := placeholderPattern.ReplaceAllString(pattern, "")
	if strings.Contains(stripped, "{{") {
		return ErrMalformedTemplate
	}
	return nil
}

// profileFields 提取白名单字段的取值。
func profileFields(u *domain.User) map[string]string {
	fields := map[string]string{
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"username":  u.Username,
		"email":     u.Email,
	}
	if u.SubscriptionExpiresAt != nil {
		fields["expirationDate"] = u.SubscriptionExpiresAt.Format(time.DateOnly)
	}
	return fields
}
