package service

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"communitymsg/backend/internal/config"
	"communitymsg/backend/internal/domain"
	"communitymsg/backend/internal/storage"
)

// Predicate 动态受众谓词：对用户目录求值，返回满足条件的用户。
//
// 谓词集合是固定的命名注册表，只有白名单内的谓词名可以被
// 调用——寻址请求携带的永远是谓词标识，不会有任何自由查询
// 片段被执行。
type Predicate struct {
	Name        string
	Description string
	Evaluate    func(dir storage.DirectoryRepository, now time.Time) ([]domain.User, error)
}

// DeliveryResolver 把寻址方式展开成去重后的具体收件人集合。
//
// 广播与动态受众都是发送时刻的快照：之后加入、或之后才满足
// 谓词的用户不会追溯收到消息。
type DeliveryResolver struct {
	dir        storage.DirectoryRepository
	predicates map[string]Predicate
	cfg        config.MessagingConfig
	log        *zap.Logger
}

// NewDeliveryResolver 创建投递解析器并注册内置谓词。
func NewDeliveryResolver(dir storage.DirectoryRepository, cfg config.MessagingConfig, log *zap.Logger) *DeliveryResolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &DeliveryResolver{
		dir:        dir,
		predicates: make(map[string]Predicate),
		cfg:        cfg,
		log:        log,
	}
	for _, p := range builtinPredicates() {
		r.predicates[p.Name] = p
	}
	return r
}

// RegisterPredicate 注册额外的受众谓词（启动期扩展点）。
func (r *DeliveryResolver) RegisterPredicate(p Predicate) {
	r.predicates[p.Name] = p
}

// Predicates 返回已注册谓词名列表。
func (r *DeliveryResolver) Predicates() []string {
	names := make([]string, 0, len(r.predicates))
	for name := range r.predicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve 在发送时刻把寻址方式展开为去重后的收件人 ID 列表。
//
// 解析结果为空返回 ErrNoRecipients（拒绝而不是静默创建孤儿
// 消息）；超过配置的收件人硬上限返回 ErrAudienceTooLarge。
// 广播与动态受众不包含发送者本人。
func (r *DeliveryResolver) Resolve(senderID string, addr domain.Addressing, now time.Time) ([]string, error) {
	var users []domain.User

	switch addr.Mode {
	case domain.AddressDirect:
		target, err := r.dir.GetUser(addr.UserID)
		if err != nil {
			return nil, err
		}
		if !target.IsActive {
			return nil, ErrRecipientInactive
		}
		if target.ID == senderID && !r.cfg.AllowSelfSend {
			return nil, ErrSelfSendNotAllowed
		}
		return []string{target.ID}, nil

	case domain.AddressBroadcast:
		var err error
		switch addr.Class {
		case domain.BroadcastAll:
			users, err = r.dir.ListAllUsers()
		case domain.BroadcastRegistered:
			users, err = r.dir.ListActiveUsers()
		case domain.BroadcastBadgeHolders:
			users, err = r.dir.ListBadgeHolders()
		default:
			return nil, fmt.Errorf("%w: broadcast class %q", ErrUnknownPredicate, addr.Class)
		}
		if err != nil {
			return nil, err
		}

	case domain.AddressDynamic:
		p, ok := r.predicates[addr.Predicate]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPredicate, addr.Predicate)
		}
		var err error
		users, err = p.Evaluate(r.dir, now)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: addressing mode %q", ErrUnknownPredicate, addr.Mode)
	}

	ids := dedupe(users, senderID)
	if len(ids) == 0 {
		return nil, ErrNoRecipients
	}
	if len(ids) > r.cfg.MaxRecipients {
		r.log.Warn("resolved audience exceeds recipient cap",
			zap.Int("resolved", len(ids)),
			zap.Int("cap", r.cfg.MaxRecipients),
		)
		return nil, ErrAudienceTooLarge
	}
	return ids, nil
}

// dedupe 去重并剔除发送者本人，保持目录返回顺序。
func dedupe(users []domain.User, senderID string) []string {
	seen := make(map[string]struct{}, len(users))
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if u.ID == senderID {
			continue
		}
		if _, ok := seen[u.ID]; ok {
			continue
		}
		seen[u.ID] = struct{}{}
		ids = append(ids, u.ID)
	}
	return ids
}

// builtinPredicates 内置谓词集。
func builtinPredicates() []Predicate {
	return []Predicate{
		{
			Name:        "sponsorship_expiring_7d",
			Description: "赞助/订阅将在 7 天内到期的活跃用户",
			Evaluate: func(dir storage.DirectoryRepository, now time.Time) ([]domain.User, error) {
				return dir.ListUsersBySubscriptionExpiry(now, now.Add(7*24*time.Hour))
			},
		},
		{
			Name:        "sponsorship_expiring_30d",
			Description: "赞助/订阅将在 30 天内到期的活跃用户",
			Evaluate: func(dir storage.DirectoryRepository, now time.Time) ([]domain.User, error) {
				return dir.ListUsersBySubscriptionExpiry(now, now.Add(30*24*time.Hour))
			},
		},
		{
			Name:        "admins",
			Description: "全部管理员（联系表单等对外提交的收件方）",
			Evaluate: func(dir storage.DirectoryRepository, _ time.Time) ([]domain.User, error) {
				return dir.ListUsersByRole(domain.RoleAdmin)
			},
		},
	}
}
