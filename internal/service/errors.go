package service

import (
	"errors"

	"communitymsg/backend/internal/domain"
	"communitymsg/backend/internal/storage"
	"communitymsg/backend/internal/template"
)

// 业务错误定义
var (
	// ErrNoRecipients 寻址解析结果为空（拒绝创建孤儿消息）
	ErrNoRecipients = errors.New("addressing resolved to zero recipients")
	// ErrAudienceTooLarge 解析出的受众超过配置上限
	ErrAudienceTooLarge = errors.New("resolved audience exceeds recipient cap")
	// ErrSelfSendNotAllowed 配置禁止给自己发私信
	ErrSelfSendNotAllowed = errors.New("sending to self is not allowed")
	// ErrUnknownPredicate 动态受众谓词不在白名单注册表内
	ErrUnknownPredicate = errors.New("unknown audience predicate")
	// ErrRecipientInactive 私信目标用户不存在或未激活
	ErrRecipientInactive = errors.New("recipient is not active")
	// ErrTooManyAttachments 附件数量超限
	ErrTooManyAttachments = errors.New("too many attachments")
	// ErrAttachmentTooLarge 单个附件大小超限
	ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")
	// ErrParentNotFound 回复引用的父消息不存在
	ErrParentNotFound = errors.New("parent message not found")
	// ErrForbidden 调用者既不是发件人也不是收件人
	ErrForbidden = errors.New("access to message denied")
	// ErrRecipientsRemain 发件人删除被拒绝：仍有收件人保留副本
	ErrRecipientsRemain = errors.New("recipients still hold copies of this message")
	// ErrTemplateNotDynamic 模板没有绑定动态受众，无法定向分发
	ErrTemplateNotDynamic = errors.New("template has no dynamic audience target")
)

// IsValidation 判断错误是否属于请求验证类（HTTP 400）。
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrNoRecipients, ErrAudienceTooLarge, ErrSelfSendNotAllowed,
		ErrUnknownPredicate, ErrRecipientInactive, ErrTooManyAttachments,
		ErrAttachmentTooLarge, ErrRecipientsRemain, ErrTemplateNotDynamic,
		domain.ErrEmptySubject, domain.ErrEmptyContent,
		domain.ErrSubjectTooLong, domain.ErrContentTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound 判断错误是否属于资源不存在类（HTTP 404）。
func IsNotFound(err error) bool {
	for _, target := range []error{
		storage.ErrMessageNotFound, storage.ErrRecipientNotFound,
		storage.ErrUserNotFound, template.ErrTemplateNotFound,
		ErrParentNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsForbidden 判断错误是否属于访问拒绝类（HTTP 403）。
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsTemplate 判断错误是否属于模板缺陷类（阻断发送，HTTP 422）。
func IsTemplate(err error) bool {
	return errors.Is(err, template.ErrUnknownPlaceholder) ||
		errors.Is(err, template.ErrMalformedTemplate)
}
