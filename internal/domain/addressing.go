package domain

// AddressingMode 寻址模式的标签。
type AddressingMode string

const (
	// AddressDirect 指定单个收件人
	AddressDirect AddressingMode = "direct"
	// AddressBroadcast 按广播类（角色/群体）在发送时快照求值
	AddressBroadcast AddressingMode = "broadcast"
	// AddressDynamic 按命名谓词在发送时对用户数据求值
	AddressDynamic AddressingMode = "dynamic"
)

// BroadcastClass 命名广播类。广播是发送时刻的快照：
// 之后加入的用户不会追溯收到。
type BroadcastClass string

const (
	BroadcastAll          BroadcastClass = "all"
	BroadcastRegistered   BroadcastClass = "registered"
	BroadcastBadgeHolders BroadcastClass = "badge_holders"
)

// Addressing 是寻址方式的带标签变体，三种形态互斥：
//
//   - Mode == AddressDirect    时使用 UserID
//   - Mode == AddressBroadcast 时使用 Class
//   - Mode == AddressDynamic   时使用 Predicate（仅允许白名单内的谓词名）
//
// 投递解析器负责把 Addressing 展开成去重后的收件人集合。
type Addressing struct {
	Mode      AddressingMode `json:"mode"`
	UserID    string         `json:"userId,omitempty"`
	Class     BroadcastClass `json:"class,omitempty"`
	Predicate string         `json:"predicate,omitempty"`
}

// AddressUser 构造单收件人寻址。
func AddressUser(userID string) Addressing {
	return Addressing{Mode: AddressDirect, UserID: userID}
}

// AddressClass 构造广播类寻址。
func AddressClass(class BroadcastClass) Addressing {
	return Addressing{Mode: AddressBroadcast, Class: class}
}

// AddressPredicate 构造动态受众寻址。
func AddressPredicate(name string) Addressing {
	return Addressing{Mode: AddressDynamic, Predicate: name}
}

// MessageType 返回该寻址方式对应的消息类型标记。
func (a Addressing) MessageType() MessageType {
	switch a.Mode {
	case AddressDirect:
		return MessageTypeDirect
	case AddressDynamic:
		return MessageTypeDynamicAudience
	case AddressBroadcast:
		switch a.Class {
		case BroadcastAll:
			return MessageTypeBroadcastAll
		case BroadcastRegistered:
			return MessageTypeBroadcastRegistered
		case BroadcastBadgeHolders:
			return MessageTypeBroadcastBadgeHolders
		}
	}
	return MessageTypeDirect
}
