package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"communitymsg/backend/internal/config"
	"communitymsg/backend/internal/domain"
	"communitymsg/backend/internal/storage"
)

// Store 数据库存储实现（PostgreSQL / MySQL，经由 GORM）。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(cfg *config.DatabaseConfig) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(cfg.DSN), cfg)
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(cfg *config.DatabaseConfig) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(cfg.DSN), cfg)
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector, cfg *config.DatabaseConfig) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 静默模式
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Message{},
		&domain.MessageRecipient{},
		&domain.Attachment{},
	)
}

// CreateMessage 在单个事务内写入消息本体、附件与全部投递
// 记录：任何一步失败整体回滚，不会出现部分投递的消息。
func (s *Store) CreateMessage(message *domain.Message, recipients []*domain.MessageRecipient) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		for _, a := range message.Attachments {
			a.MessageID = message.ID
			if err := tx.Create(a).Error; err != nil {
				return err
			}
		}
		for _, r := range recipients {
			r.MessageID = message.ID
			if err := tx.Create(r).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return storage.ErrDuplicateRecipient
				}
				return err
			}
		}
		return nil
	})
}

// GetMessage 按 ID 取消息本体（含附件元数据）。
func (s *Store) GetMessage(id string) (*domain.Message, error) {
	var message domain.Message
	if err := s.db.First(&message, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrMessageNotFound
		}
		return nil, err
	}
	if err := s.loadAttachments(&message); err != nil {
		return nil, err
	}
	return &message, nil
}

// ListMessagesForUser 返回用户作为发件人或收件人可见的全部消息。
func (s *Store) ListMessagesForUser(userID string) ([]domain.InboxMessage, error) {
	var messages []domain.Message
	err := s.db.
		Distinct("messages.*").
		Joins("LEFT JOIN message_recipients r ON r.message_id = messages.id").
		Where("messages.sender_id = ? OR r.recipient_id = ?", userID, userID).
		Order("messages.seq ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// 批量取该用户自己的投递记录，拼出已读视图
	var records []domain.MessageRecipient
	if err := s.db.Where("recipient_id = ?", userID).Find(&records).Error; err != nil {
		return nil, err
	}
	readState := make(map[string]*domain.MessageRecipient, len(records))
	for i := range records {
		readState[records[i].MessageID] = &records[i]
	}

	result := make([]domain.InboxMessage, 0, len(messages))
	for i := range messages {
		if err := s.loadAttachments(&messages[i]); err != nil {
			return nil, err
		}
		view := domain.InboxMessage{Message: messages[i]}
		if rec, ok := readState[messages[i].ID]; ok {
			view.Read = rec.Read
			view.ReadAt = rec.ReadAt
		} else {
			// 发件人视角：自己发出的消息视为已读
			view.Read = true
		}
		result = append(result, view)
	}
	return result, nil
}

// GetRecipient 取单条投递记录。
func (s *Store) GetRecipient(messageID, recipientID string) (*domain.MessageRecipient, error) {
	var record domain.MessageRecipient
	err := s.db.First(&record, "message_id = ? AND recipient_id = ?", messageID, recipientID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrRecipientNotFound
		}
		return nil, err
	}
	return &record, nil
}

// ListRecipients 列出消息的全部投递记录。
func (s *Store) ListRecipients(messageID string) ([]domain.MessageRecipient, error) {
	if err := s.ensureMessage(messageID); err != nil {
		return nil, err
	}
	var records []domain.MessageRecipient
	err := s.db.Where("message_id = ?", messageID).
		Order("recipient_id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MarkRead 幂等地把投递记录置为已读。
//
// 条件更新只命中 read = false 的行，重复调用不改写 readAt；
// 并发调用由数据库行锁保证 read/readAt 的原子迁移。
func (s *Store) MarkRead(messageID, recipientID string, at time.Time) error {
	result := s.db.Model(&domain.MessageRecipient{}).
		Where("message_id = ? AND recipient_id = ? AND read = ?", messageID, recipientID, false).
		Updates(map[string]interface{}{"read": true, "read_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// 没有命中：要么记录不存在，要么已读（幂等成功）
		var count int64
		if err := s.db.Model(&domain.MessageRecipient{}).
			Where("message_id = ? AND recipient_id = ?", messageID, recipientID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrRecipientNotFound
		}
	}
	return nil
}

// DeleteRecipient 删除单条投递记录。
func (s *Store) DeleteRecipient(messageID, recipientID string) error {
	result := s.db.Where("message_id = ? AND recipient_id = ?", messageID, recipientID).
		Delete(&domain.MessageRecipient{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrRecipientNotFound
	}
	return nil
}

// DeleteMessage 删除消息本体、附件与剩余投递记录。
func (s *Store) DeleteMessage(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&domain.Message{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrMessageNotFound
		}
		if err := tx.Where("message_id = ?", id).Delete(&domain.Attachment{}).Error; err != nil {
			return err
		}
		return tx.Where("message_id = ?", id).Delete(&domain.MessageRecipient{}).Error
	})
}

// CountRecipients 返回消息现存投递记录数。
func (s *Store) CountRecipients(messageID string) (int, error) {
	if err := s.ensureMessage(messageID); err != nil {
		return 0, err
	}
	var count int64
	err := s.db.Model(&domain.MessageRecipient{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	return int(count), err
}

// loadAttachments 加载消息的附件元数据。
func (s *Store) loadAttachments(message *domain.Message) error {
	var attachments []*domain.Attachment
	err := s.db.Where("message_id = ?", message.ID).
		Order("id ASC").
		Find(&attachments).Error
	if err != nil {
		return err
	}
	if len(attachments) > 0 {
		message.Attachments = attachments
	}
	return nil
}

func (s *Store) ensureMessage(id string) error {
	var count int64
	if err := s.db.Model(&domain.Message{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return storage.ErrMessageNotFound
	}
	return nil
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 数据库健康检查。
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// SaveUser 写入用户目录条目（初始化导入用）。
func (s *Store) SaveUser(user *domain.User) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(user).Error
}

// GetUser 按 ID 取用户。
func (s *Store) GetUser(id string) (*domain.User, error) {
	var user domain.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListAllUsers 返回全部用户。
func (s *Store) ListAllUsers() ([]domain.User, error) {
	return s.listUsers(s.db)
}

// ListActiveUsers 返回已激活的注册用户。
func (s *Store) ListActiveUsers() ([]domain.User, error) {
	return s.listUsers(s.db.Where("is_active = ?", true))
}

// ListBadgeHolders 返回活跃的徽章持有者。
func (s *Store) ListBadgeHolders() ([]domain.User, error) {
	return s.listUsers(s.db.Where("is_active = ? AND badge_holder = ?", true, true))
}

// ListUsersByRole 返回指定角色的活跃用户。
func (s *Store) ListUsersByRole(role domain.UserRole) ([]domain.User, error) {
	return s.listUsers(s.db.Where("is_active = ? AND role = ?", true, role))
}

// ListUsersBySubscriptionExpiry 返回订阅到期时间落在 [from, to) 的活跃用户。
func (s *Store) ListUsersBySubscriptionExpiry(from, to time.Time) ([]domain.User, error) {
	return s.listUsers(s.db.Where(
		"is_active = ? AND subscription_expires_at >= ? AND subscription_expires_at < ?",
		true, from, to,
	))
}

func (s *Store) listUsers(tx *gorm.DB) ([]domain.User, error) {
	var users []domain.User
	if err := tx.Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
