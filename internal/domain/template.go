package domain

// TemplateTargetType 模板的目标类型。
type TemplateTargetType string

const (
	// TargetSpecificRecipient 模板发送给调用方指定的单个收件人
	TargetSpecificRecipient TemplateTargetType = "specific_recipient"
	// TargetDynamicQuery 模板绑定一个命名谓词，由投递解析器展开受众
	TargetDynamicQuery TemplateTargetType = "dynamic_query"
)

// MessageTemplate 表示一个消息模板。
//
// 模板是启动时加载的静态配置，运行期不可变：修改模板应当发布
// 新版本而不是原地变更，避免追溯性地改变已渲染内容的审计记录。
// 主题与正文中的 {{placeholder}} 占位符在发送前按收件人资料填充。
type MessageTemplate struct {
	ID      string             `json:"id" yaml:"id"`
	Name    string             `json:"name" yaml:"name"`
	Subject string             `json:"subject" yaml:"subject"`
	Content string             `json:"content" yaml:"content"`
	Target  TemplateTargetType `json:"target" yaml:"target"`
	// TargetQuery 在 Target == TargetDynamicQuery 时引用投递解析器
	// 谓词注册表中的谓词名，例如 "sponsorship_expiring_7d"。
	TargetQuery string `json:"targetQuery,omitempty" yaml:"targetQuery"`
}

// RenderedTemplate 模板针对某个收件人渲染后的结果。
type RenderedTemplate struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}
