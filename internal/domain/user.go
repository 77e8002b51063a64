package domain

import "time"

// UserRole 用户角色
type UserRole string

const (
	RoleMember UserRole = "member"
	RoleVendor UserRole = "vendor"
	RoleAdmin  UserRole = "admin"
)

// User 是用户目录的只读投影。
//
// 消息子系统不拥有用户生命周期，只读取广播受众判定与模板
// 渲染所需的字段。认证与账号管理由外部协作方负责。
type User struct {
	ID          string   `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email       string   `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Username    string   `json:"username,omitempty" gorm:"type:varchar(100)"`
	FirstName   string   `json:"firstName,omitempty" gorm:"type:varchar(100)"`
	LastName    string   `json:"lastName,omitempty" gorm:"type:varchar(100)"`
	Role        UserRole `json:"role" gorm:"type:varchar(20);default:'member';index"`
	IsActive    bool     `json:"isActive" gorm:"default:true;index"`
	BadgeHolder bool     `json:"badgeHolder" gorm:"default:false;index"`
	// SubscriptionExpiresAt 赞助/订阅到期时间，动态受众谓词使用。
	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt,omitempty" gorm:"index"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// IsAdmin 判断用户是否为管理员
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsRegistered 判断用户是否为已激活的注册用户。
// broadcast_registered 广播类以此为准。
func (u *User) IsRegistered() bool {
	return u.IsActive
}
