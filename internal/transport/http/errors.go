package httptransport

import (
	"github.com/gin-gonic/gin"

	"communitymsg/backend/internal/service"
	"communitymsg/backend/internal/storage"
	"communitymsg/backend/internal/template"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// Message 错误
	storage.ErrMessageNotFound:   "消息不存在",
	storage.ErrRecipientNotFound: "收件记录不存在",
	storage.ErrUserNotFound:      "用户不存在",
	service.ErrParentNotFound:    "被回复的消息不存在",
	service.ErrForbidden:         "无权访问该消息",
	service.ErrRecipientsRemain:  "仍有未删除的收件人副本",

	// 投递错误
	service.ErrNoRecipients:       "没有可投递的收件人",
	service.ErrAudienceTooLarge:   "收件人数量超过上限",
	service.ErrSelfSendNotAllowed: "不允许给自己发送消息",
	service.ErrUnknownPredicate:   "未知的动态收件人规则",
	service.ErrRecipientInactive:  "收件人账户不可用",

	// 附件错误
	service.ErrTooManyAttachments: "附件数量超过上限",
	service.ErrAttachmentTooLarge: "附件大小超过限制",

	// 模板错误
	template.ErrTemplateNotFound:   "模板不存在",
	service.ErrTemplateNotDynamic:  "模板不支持动态收件人下发",
	template.ErrUnknownPlaceholder: "模板包含未注册的占位符",
	template.ErrMalformedTemplate:  "模板占位符格式错误",
	template.ErrDuplicateTemplate:  "模板标识重复",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// RespondError 按错误分类返回对应的 HTTP 响应
func RespondError(c *gin.Context, err error) {
	msg := GetErrorMessage(err)
	switch {
	case service.IsNotFound(err):
		NotFound(c, msg)
	case service.IsForbidden(err):
		Forbidden(c, msg)
	case service.IsTemplate(err):
		UnprocessableEntity(c, msg)
	case service.IsValidation(err):
		BadRequest(c, msg)
	default:
		InternalError(c, "服务器内部错误")
	}
}

// 通用错误消息
const (
	MsgInvalidRequest   = "请求参数格式错误"
	MsgAuthRequired     = "需要登录认证"
	MsgPermissionDenied = "权限不足"
	MsgSecretInvalid    = "共享密钥校验失败"
)
