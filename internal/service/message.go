package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"communitymsg/backend/internal/config"
	"communitymsg/backend/internal/domain"
	"communitymsg/backend/internal/monitoring"
	"communitymsg/backend/internal/notify"
	"communitymsg/backend/internal/pool"
	"communitymsg/backend/internal/storage"
	"communitymsg/backend/internal/template"
	"communitymsg/backend/internal/thread"
)

// MessageService 封装消息子系统的业务逻辑：撰写、收件箱线程
// 视图、已读标记与按收件人删除。
type MessageService struct {
	store    storage.Store
	resolver *DeliveryResolver
	engine   *template.Engine
	cfg      config.MessagingConfig
	log      *zap.Logger

	notifier notify.Notifier
	unread   storage.UnreadCache // 可选的未读数旁路缓存
	workers  *pool.WorkerPool    // 可选，限制通知分发的并发
	metrics  *monitoring.Metrics // 可选
}

// NewMessageService 创建消息业务服务。
func NewMessageService(store storage.Store, resolver *DeliveryResolver, engine *template.Engine, cfg config.MessagingConfig, log *zap.Logger) *MessageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageService{
		store:    store,
		resolver: resolver,
		engine:   engine,
		cfg:      cfg,
		log:      log,
		notifier: notify.Nop{},
	}
}

// SetNotifier 注入消息事件通知器（默认空操作）。
func (s *MessageService) SetNotifier(n notify.Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// SetUnreadCache 注入未读数缓存（可选）。
func (s *MessageService) SetUnreadCache(cache storage.UnreadCache) {
	s.unread = cache
}

// SetWorkerPool 注入通知分发用的协程池（可选）。
func (s *MessageService) SetWorkerPool(p *pool.WorkerPool) {
	s.workers = p
}

// SetMetrics 注入业务指标（可选）。
func (s *MessageService) SetMetrics(m *monitoring.Metrics) {
	s.metrics = m
}

// CreateMessageInput 定义撰写消息的输入。
type CreateMessageInput struct {
	SenderID    string
	Subject     string
	Content     string
	Addressing  domain.Addressing
	InReplyTo   string
	Attachments []*domain.Attachment
}

// Create 创建一条消息并原子地扇出投递记录。
//
// 根消息要求主题与正文非空；回复可以省略主题，按
// "Re: <父主题>" 约定继承。回复未显式寻址时默认投递给父消息
// 的发件人。解析出的每个收件人得到一条 read=false 的投递记录。
func (s *MessageService) Create(input CreateMessageInput) (*domain.Message, error) {
	if err := domain.ValidateContent(input.Content); err != nil {
		return nil, err
	}
	if err := s.validateAttachments(input.Attachments); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	subject := input.Subject
	addressing := input.Addressing

	if input.InReplyTo != "" {
		parent, err := s.store.GetMessage(input.InReplyTo)
		if err != nil {
			if errors.Is(err, storage.ErrMessageNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, err
		}
		subject = domain.ReplySubject(input.Subject, parent.Subject)
		// 回复未显式寻址时投递给父消息的发件人
		if addressing.Mode == "" {
			addressing = domain.AddressUser(parent.SenderID)
		}
	} else {
		if err := domain.ValidateSubject(subject); err != nil {
			return nil, err
		}
	}

	recipientIDs, err := s.resolver.Resolve(input.SenderID, addressing, now)
	if err != nil {
		return nil, err
	}

	message := &domain.Message{
		ID:          uuid.NewString(),
		SenderID:    input.SenderID,
		Subject:     subject,
		Content:     input.Content,
		Type:        addressing.MessageType(),
		InReplyTo:   input.InReplyTo,
		CreatedAt:   now,
		UpdatedAt:   now,
		Attachments: stampAttachments(input.Attachments),
	}

	if err := s.persist(message, recipientIDs, now); err != nil {
		return nil, err
	}
	return message, nil
}

// DispatchTemplateInput 定义模板分发的输入。
type DispatchTemplateInput struct {
	TemplateID string
	SenderID   string
	// RecipientID 在模板目标为 specific_recipient 且未给出
	// Addressing 时必填。
	RecipientID string
	// Addressing 显式覆盖模板自带的目标（联系表单用它把
	// specific 模板广播给全部管理员）。
	Addressing *domain.Addressing
	// AppendContent 追加在渲染结果之后的正文（例如联系表单的
	// 访客原文），本身不参与占位符替换。
	AppendContent string
}

// DispatchTemplate 按模板向解析出的受众分发消息。
//
// 模板占位符按收件人资料逐人渲染，因此每个收件人得到一条
// 独立的消息记录（各自单条投递记录，逐条原子落库）。渲染
// 失败阻断发送（fail closed），不会下发带原始占位符的内容。
func (s *MessageService) DispatchTemplate(input DispatchTemplateInput) ([]*domain.Message, error) {
	tmpl, err := s.engine.Get(input.TemplateID)
	if err != nil {
		return nil, err
	}

	var addressing domain.Addressing
	switch {
	case input.Addressing != nil:
		addressing = *input.Addressing
	case tmpl.Target == domain.TargetDynamicQuery:
		if tmpl.TargetQuery == "" {
			return nil, ErrTemplateNotDynamic
		}
		addressing = domain.AddressPredicate(tmpl.TargetQuery)
	default:
		addressing = domain.AddressUser(input.RecipientID)
	}

	now := time.Now().UTC()
	recipientIDs, err := s.resolver.Resolve(input.SenderID, addressing, now)
	if err != nil {
		return nil, err
	}

	// 先逐人渲染，全部成功后再落库：渲染失败不产生任何消息
	type rendered struct {
		recipientID string
		result      *domain.RenderedTemplate
	}
	prepared := make([]rendered, 0, len(recipientIDs))
	for _, recipientID := range recipientIDs {
		user, err := s.store.GetUser(recipientID)
		if err != nil {
			return nil, err
		}
		result, err := s.engine.Render(tmpl.ID, user)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, rendered{recipientID: recipientID, result: result})
	}

	created := make([]*domain.Message, 0, len(prepared))
	for _, p := range prepared {
		content := p.result.Content
		if input.AppendContent != "" {
			content += "\n\n" + input.AppendContent
		}
		message := &domain.Message{
			ID:         uuid.NewString(),
			SenderID:   input.SenderID,
			Subject:    p.result.Subject,
			Content:    content,
			Type:       addressing.MessageType(),
			TemplateID: tmpl.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.persist(message, []string{p.recipientID}, now); err != nil {
			return created, err
		}
		created = append(created, message)
	}

	if s.metrics != nil {
		s.metrics.RecordTemplateDispatch(tmpl.ID)
	}
	s.log.Info("template dispatched",
		zap.String("template", tmpl.ID),
		zap.Int("recipients", len(created)),
	)
	return created, nil
}

// List 返回用户可见的全部消息（扁平、未线程化）。
func (s *MessageService) List(userID string) ([]domain.InboxMessage, error) {
	return s.store.ListMessagesForUser(userID)
}

// Inbox 返回用户收件箱的线程视图与未读线程数。
func (s *MessageService) Inbox(userID string) ([]domain.Thread, int, error) {
	messages, err := s.store.ListMessagesForUser(userID)
	if err != nil {
		return nil, 0, err
	}
	start := time.Now()
	threads := thread.Build(messages)
	unreadCount := thread.CountUnread(threads)
	if s.metrics != nil {
		s.metrics.RecordThreadBuild(time.Since(start))
	}

	if s.unread != nil {
		if err := s.unread.SetUnreadCount(userID, unreadCount, s.cfg.UnreadCacheTTL); err != nil {
			s.log.Warn("failed to cache unread count", zap.String("user", userID), zap.Error(err))
		}
	}
	return threads, unreadCount, nil
}

// UnreadCount 返回用户未读线程数，优先走缓存。
func (s *MessageService) UnreadCount(userID string) (int, error) {
	if s.unread != nil {
		if count, ok, err := s.unread.GetUnreadCount(userID); err == nil && ok {
			if s.metrics != nil {
				s.metrics.RecordUnreadCacheLookup("hit")
			}
			return count, nil
		}
		if s.metrics != nil {
			s.metrics.RecordUnreadCacheLookup("miss")
		}
	}
	_, count, err := s.Inbox(userID)
	return count, err
}

// Get 获取单条消息详情，调用者必须是发件人或收件人。
func (s *MessageService) Get(messageID, requestingUserID string) (*domain.Message, error) {
	message, err := s.store.GetMessage(messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID == requestingUserID {
		return message, nil
	}
	if _, err := s.store.GetRecipient(messageID, requestingUserID); err != nil {
		if errors.Is(err, storage.ErrRecipientNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	return message, nil
}

// MarkRead 幂等地把消息对该用户置为已读。
func (s *MessageService) MarkRead(messageID, userID string) error {
	if err := s.store.MarkRead(messageID, userID, time.Now().UTC()); err != nil {
		return err
	}
	s.invalidateUnread(userID)
	return nil
}

// DeleteForUser 按用户删除消息。
//
// 收件人删除只移除自己的投递记录，其他收件人与发件人不受
// 影响。发件人删除时若已无任何收件人保留副本，消息本体一并
// 删除；仍有副本保留则拒绝（ErrRecipientsRemain）。
func (s *MessageService) DeleteForUser(messageID, userID string) error {
	message, err := s.store.GetMessage(messageID)
	if err != nil {
		return err
	}

	_, recErr := s.store.GetRecipient(messageID, userID)
	isRecipient := recErr == nil
	if recErr != nil && !errors.Is(recErr, storage.ErrRecipientNotFound) {
		return recErr
	}
	if !isRecipient && message.SenderID != userID {
		return ErrForbidden
	}

	if isRecipient {
		if err := s.store.DeleteRecipient(messageID, userID); err != nil {
			return err
		}
	}

	if message.SenderID == userID {
		remaining, err := s.store.CountRecipients(messageID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			// 最后一方离场，消息本体一并清理
			if err := s.store.DeleteMessage(messageID); err != nil {
				return err
			}
		} else if !isRecipient {
			return ErrRecipientsRemain
		}
	}

	s.invalidateUnread(userID)
	return nil
}

// persist 原子落库并触发失效与通知。
func (s *MessageService) persist(message *domain.Message, recipientIDs []string, now time.Time) error {
	records := make([]*domain.MessageRecipient, len(recipientIDs))
	for i, id := range recipientIDs {
		records[i] = &domain.MessageRecipient{
			MessageID:   message.ID,
			RecipientID: id,
			Read:        false,
			DeliveredAt: now,
		}
	}
	if err := s.store.CreateMessage(message, records); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordMessageCreated(string(message.Type), len(recipientIDs))
	}
	s.invalidateUnread(recipientIDs...)
	s.dispatchNotification(message, recipientIDs)
	return nil
}

// dispatchNotification 在落库成功后分发通知。通知失败只记
// 日志，不影响已持久化的消息。
func (s *MessageService) dispatchNotification(message *domain.Message, recipientIDs []string) {
	event := notify.Event{Message: message, RecipientIDs: recipientIDs}
	task := func(parent context.Context) {
		ctx, cancel := context.WithTimeout(parent, 5*time.Second)
		defer cancel()
		if err := s.notifier.MessageCreated(ctx, event); err != nil {
			if s.metrics != nil {
				s.metrics.RecordNotifyDispatch("failed")
			}
			s.log.Warn("message notification failed",
				zap.String("messageId", message.ID),
				zap.Error(err),
			)
			return
		}
		if s.metrics != nil {
			s.metrics.RecordNotifyDispatch("ok")
		}
	}
	if s.workers != nil {
		if err := s.workers.TrySubmit(task); err == nil {
			return
		}
	}
	task(context.Background())
}

func (s *MessageService) invalidateUnread(userIDs ...string) {
	if s.unread == nil || len(userIDs) == 0 {
		return
	}
	if err := s.unread.InvalidateUnread(userIDs...); err != nil {
		s.log.Warn("failed to invalidate unread cache", zap.Error(err))
	}
}

func (s *MessageService) validateAttachments(attachments []*domain.Attachment) error {
	if len(attachments) > s.cfg.MaxAttachments {
		return ErrTooManyAttachments
	}
	for _, a := range attachments {
		if a.Size > s.cfg.MaxAttachmentSize {
			return ErrAttachmentTooLarge
		}
	}
	return nil
}

// stampAttachments 为附件元数据补齐 ID。
func stampAttachments(attachments []*domain.Attachment) []*domain.Attachment {
	for _, a := range attachments {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
	}
	return attachments
}
