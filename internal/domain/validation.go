package domain

import (
	"errors"
	"strings"
)

// 验证相关的错误定义
var (
	ErrEmptySubject   = errors.New("subject is required for root messages")
	ErrEmptyContent   = errors.New("content is required")
	ErrSubjectTooLong = errors.New("subject too long")
	ErrContentTooLong = errors.New("content too long")
)

// 验证常量
const (
	MaxSubjectLength = 500
	MaxContentLength = 64 * 1024 // 64KB 纯文本正文上限
)

// ValidateSubject 验证根消息主题。回复可以省略主题，
// 存储层会套用 "Re: <根主题>" 约定，因此只对根消息调用。
func ValidateSubject(subject string) error {
	if strings.TrimSpace(subject) == "" {
		return ErrEmptySubject
	}
	if len(subject) > MaxSubjectLength {
		return ErrSubjectTooLong
	}
	return nil
}

// ValidateContent 验证消息正文，根消息与回复都必须非空。
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if len(content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// ReplySubject 按 "Re: <根主题>" 约定推导回复主题。
// 回复显式给出主题时原样保留；父主题已带 Re: 前缀时不再叠加。
func ReplySubject(explicit, parentSubject string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	if strings.HasPrefix(parentSubject, "Re: ") {
		return parentSubject
	}
	return "Re: " + parentSubject
}
