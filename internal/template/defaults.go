package template

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"communitymsg/backend/internal/domain"
)

// DefaultTemplates 返回内置模板集。
//
// 部署方可以通过模板文件覆盖或扩充这组模板；内置集保证
// 联系表单与订阅提醒在零配置下可用。
func DefaultTemplates() []domain.MessageTemplate {
	return []domain.MessageTemplate{
		{
			ID:          "sponsorship_renewal",
			Name:        "Sponsorship Renewal Reminder",
			Subject:     "Reminder: Renew Your Sponsorship Benefits",
			Content:     "Hi {{firstName}}, your sponsorship benefits expire on {{expirationDate}}. Renew today to keep your vendor listing and badge perks active.",
			Target:      domain.TargetDynamicQuery,
			TargetQuery: "sponsorship_expiring_7d",
		},
		{
			ID:          "badge_expiry_notice",
			Name:        "Badge Expiry Notice",
			Subject:     "Your badge benefits are expiring soon",
			Content:     "Hi {{firstName}}, our records show your membership benefits expire on {{expirationDate}}.",
			Target:      domain.TargetDynamicQuery,
			TargetQuery: "sponsorship_expiring_30d",
		},
		{
			ID:      "contact_bug_report",
			Name:    "Contact Form: Bug Report",
			Subject: "New bug report received",
			Content: "Hi {{firstName}}, a visitor submitted a bug report through the contact form. Please review it in the inbox.",
			Target:  domain.TargetSpecificRecipient,
		},
		{
			ID:      "contact_feature_request",
			Name:    "Contact Form: Feature Request",
			Subject: "New feature request received",
			Content: "Hi {{firstName}}, a visitor submitted a feature request through the contact form.",
			Target:  domain.TargetSpecificRecipient,
		},
		{
			ID:      "contact_feedback",
			Name:    "Contact Form: Feedback",
			Subject: "New feedback received",
			Content: "Hi {{firstName}}, a visitor left feedback through the contact form.",
			Target:  domain.TargetSpecificRecipient,
		},
		{
			ID:      "welcome_member",
			Name:    "Welcome Message",
			Subject: "Welcome to the community",
			Content: "Hi {{firstName}}, welcome aboard! Your account {{username}} is ready. Visit the vendor directory and events calendar to get started.",
			Target:  domain.TargetSpecificRecipient,
		},
	}
}

// templateFile 模板文件的顶层结构。
type templateFile struct {
	Templates []domain.MessageTemplate `yaml:"templates"`
}

// LoadFile 从 YAML 文件加载模板定义。
//
// 文件中的模板按 ID 覆盖内置模板，其余内置模板保留。
func LoadFile(path string) ([]domain.MessageTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse template file: %w", err)
	}

	merged := DefaultTemplates()
	index := make(map[string]int, len(merged))
	for i, t := range merged {
		index[t.ID] = i
	}
	for _, t := range f.Templates {
		if i, ok := index[t.ID]; ok {
			merged[i] = t
			continue
		}
		merged = append(merged, t)
	}
	return merged, nil
}
