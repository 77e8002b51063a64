package memory

import (
	"sort"
	"time"

	"communitymsg/backend/internal/domain"
	"communitymsg/backend/internal/storage"
)

// SaveUser 写入用户目录条目（初始化导入与测试用）。
func (s *Store) SaveUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// GetUser 按 ID 取用户。
func (s *Store) GetUser(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// ListAllUsers 返回全部用户。
func (s *Store) ListAllUsers() ([]domain.User, error) {
	return s.listUsers(func(*domain.User) bool { return true })
}

// ListActiveUsers 返回已激活的注册用户。
func (s *Store) ListActiveUsers() ([]domain.User, error) {
	return s.listUsers(func(u *domain.User) bool { return u.IsRegistered() })
}

// ListBadgeHolders 返回活跃的徽章持有者。
func (s *Store) ListBadgeHolders() ([]domain.User, error) {
	return s.listUsers(func(u *domain.User) bool { return u.IsActive && u.BadgeHolder })
}

// ListUsersByRole 返回指定角色的活跃用户。
func (s *Store) ListUsersByRole(role domain.UserRole) ([]domain.User, error) {
	return s.listUsers(func(u *domain.User) bool { return u.IsActive && u.Role == role })
}

// ListUsersBySubscriptionExpiry 返回订阅到期时间落在 [from, to) 的活跃用户。
func (s *Store) ListUsersBySubscriptionExpiry(from, to time.Time) ([]domain.User, error) {
	return s.listUsers(func(u *domain.User) bool {
		if !u.IsActive || u.SubscriptionExpiresAt == nil {
			return false
		}
		exp := *u.SubscriptionExpiresAt
		return !exp.Before(from) && exp.Before(to)
	})
}

func (s *Store) listUsers(match func(*domain.User) bool) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if match(u) {
			result = append(result, *u)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}
