package memory

import (
	"sort"
	"sync"
	"time"

	"communitymsg/backend/internal/domain"
	"communitymsg/backend/internal/storage"
)

// Store 使用内存保存消息与投递记录，主要用于开发验证与测试。
type Store struct {
	mu          sync.RWMutex
	messages    map[string]*domain.Message                            // messageID -> message
	attachments map[string][]*domain.Attachment                       // messageID -> attachments
	recipients  map[string]map[string]*domain.MessageRecipient        // messageID -> recipientID -> record
	byRecipient map[string]map[string]struct{}                        // recipientID -> messageID set
	bySender    map[string]map[string]struct{}                        // senderID -> messageID set
	users       map[string]*domain.User                               // userID -> user
	seq         int64                                                 // 单调插入序号
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		messages:    make(map[string]*domain.Message),
		attachments: make(map[string][]*domain.Attachment),
		recipients:  make(map[string]map[string]*domain.MessageRecipient),
		byRecipient: make(map[string]map[string]struct{}),
		bySender:    make(map[string]map[string]struct{}),
		users:       make(map[string]*domain.User),
	}
}

// CreateMessage 原子写入消息、附件与全部投递记录。
// 内存实现下单把大锁即保证原子性。
func (s *Store) CreateMessage(message *domain.Message, recipients []*domain.MessageRecipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 先做重复检查，避免写入一半后失败
	seen := make(map[string]struct{}, len(recipients))
	for _, r := range recipients {
		if _, dup := seen[r.RecipientID]; dup {
			return storage.ErrDuplicateRecipient
		}
		seen[r.RecipientID] = struct{}{}
	}

	s.seq++
	message.Seq = s.seq

	stored := *message
	s.messages[message.ID] = &stored
	if len(message.Attachments) > 0 {
		atts := make([]*domain.Attachment, len(message.Attachments))
		for i, a := range message.Attachments {
			cp := *a
			cp.MessageID = message.ID
			atts[i] = &cp
		}
		s.attachments[message.ID] = atts
	}

	byMsg := make(map[string]*domain.MessageRecipient, len(recipients))
	for _, r := range recipients {
		cp := *r
		cp.MessageID = message.ID
		byMsg[r.RecipientID] = &cp
		if _, ok := s.byRecipient[r.RecipientID]; !ok {
			s.byRecipient[r.RecipientID] = make(map[string]struct{})
		}
		s.byRecipient[r.RecipientID][message.ID] = struct{}{}
	}
	s.recipients[message.ID] = byMsg

	if _, ok := s.bySender[message.SenderID]; !ok {
		s.bySender[message.SenderID] = make(map[string]struct{})
	}
	s.bySender[message.SenderID][message.ID] = struct{}{}

	return nil
}

// GetMessage 按 ID 取消息本体。
func (s *Store) GetMessage(id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, storage.ErrMessageNotFound
	}
	return s.copyMessageLocked(msg), nil
}

// ListMessagesForUser 返回用户作为发件人或收件人可见的全部消息。
func (s *Store) ListMessagesForUser(userID string) ([]domain.InboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{})
	for id := range s.bySender[userID] {
		ids[id] = struct{}{}
	}
	for id := range s.byRecipient[userID] {
		ids[id] = struct{}{}
	}

	result := make([]domain.InboxMessage, 0, len(ids))
	for id := range ids {
		msg, ok := s.messages[id]
		if !ok {
			continue
		}
		view := domain.InboxMessage{Message: *s.copyMessageLocked(msg)}
		if rec, ok := s.recipients[id][userID]; ok {
			view.Read = rec.Read
			view.ReadAt = rec.ReadAt
		} else {
			// 发件人视角：自己发出的消息视为已读
			view.Read = true
		}
		result = append(result, view)
	}

	// 按插入序号升序，保证排序确定性
	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result, nil
}

// GetRecipient 取单条投递记录。
func (s *Store) GetRecipient(messageID, recipientID string) (*domain.MessageRecipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recipients[messageID][recipientID]
	if !ok {
		return nil, storage.ErrRecipientNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListRecipients 列出消息的全部投递记录。
func (s *Store) ListRecipients(messageID string) ([]domain.MessageRecipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.messages[messageID]; !ok {
		return nil, storage.ErrMessageNotFound
	}
	byMsg := s.recipients[messageID]
	result := make([]domain.MessageRecipient, 0, len(byMsg))
	for _, rec := range byMsg {
		result = append(result, *rec)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RecipientID < result[j].RecipientID
	})
	return result, nil
}

// MarkRead 幂等地把投递记录置为已读。
func (s *Store) MarkRead(messageID, recipientID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recipients[messageID][recipientID]
	if !ok {
		return storage.ErrRecipientNotFound
	}
	if rec.Read {
		// 未读到已读是单调迁移，重复调用不改写 ReadAt
		return nil
	}
	rec.Read = true
	rec.ReadAt = &at
	return nil
}

// DeleteRecipient 删除单条投递记录。
func (s *Store) DeleteRecipient(messageID, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recipients[messageID][recipientID]; !ok {
		return storage.ErrRecipientNotFound
	}
	delete(s.recipients[messageID], recipientID)
	delete(s.byRecipient[recipientID], messageID)
	return nil
}

// DeleteMessage 删除消息本体、附件与剩余投递记录。
func (s *Store) DeleteMessage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return storage.ErrMessageNotFound
	}
	for recipientID := range s.recipients[id] {
		delete(s.byRecipient[recipientID], id)
	}
	delete(s.recipients, id)
	delete(s.attachments, id)
	delete(s.bySender[msg.SenderID], id)
	delete(s.messages, id)
	return nil
}

// CountRecipients 返回消息现存投递记录数。
func (s *Store) CountRecipients(messageID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.messages[messageID]; !ok {
		return 0, storage.ErrMessageNotFound
	}
	return len(s.recipients[messageID]), nil
}

// copyMessageLocked 复制消息并附带附件，调用方需持有读锁。
func (s *Store) copyMessageLocked(msg *domain.Message) *domain.Message {
	cp := *msg
	if atts, ok := s.attachments[msg.ID]; ok {
		cp.Attachments = make([]*domain.Attachment, len(atts))
		for i, a := range atts {
			ac := *a
			cp.Attachments[i] = &ac
		}
	}
	return &cp
}

// Close 关闭存储（内存实现为空操作）。
func (s *Store) Close() error { return nil }

// Health 健康检查（内存实现总是健康）。
func (s *Store) Health() error { return nil }
