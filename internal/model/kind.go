// Package model 定义数据库实体模型
// 本文件定义会话类型（私聊 / 团队 / 部门）
package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Kind 会话类型，封闭枚举
// 零值不是合法类型，所有入口都必须经过 ParseKind 校验
type Kind uint8

const (
	KindPrivate    Kind = iota + 1 // 一对一私聊
	KindTeam                       // 团队群聊
	KindDepartment                 // 部门群聊
)

// ParseKind 将客户端传入的字符串解析为 Kind，大小写不敏感
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PRIVATE":
		return KindPrivate, nil
	case "TEAM":
		return KindTeam, nil
	case "DEPARTMENT":
		return KindDepartment, nil
	}
	return 0, fmt.Errorf("invalid conversation kind %q", s)
}

func (k Kind) String() string {
	switch k {
	case KindPrivate:
		return "PRIVATE"
	case KindTeam:
		return "TEAM"
	case KindDepartment:
		return "DEPARTMENT"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid 是否为三种合法类型之一
func (k Kind) Valid() bool {
	return k == KindPrivate || k == KindTeam || k == KindDepartment
}

// IsGroup 团队与部门共享群聊语义（成员列表、已读行、主题广播）
func (k Kind) IsGroup() bool {
	return k == KindTeam || k == KindDepartment
}

// TopicPrefix 群聊广播主题前缀，如 /topic/team-
func (k Kind) TopicPrefix() string {
	switch k {
	case KindTeam:
		return "/topic/team-"
	case KindDepartment:
		return "/topic/department-"
	}
	return ""
}

// MarshalText 序列化为 "PRIVATE" / "TEAM" / "DEPARTMENT"
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid conversation kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText 反序列化，拒绝未知类型
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Value 实现 driver.Valuer，数据库中存字符串便于排查
func (k Kind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid conversation kind %d", uint8(k))
	}
	return k.String(), nil
}

// Scan 实现 sql.Scanner
func (k *Kind) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return k.UnmarshalText([]byte(v))
	case []byte:
		return k.UnmarshalText(v)
	case nil:
		*k = 0
		return nil
	}
	return fmt.Errorf("cannot scan %T into Kind", src)
}

// Conversation 会话引用
// 私聊时 ID 为对方用户 ID（从当前用户视角），群聊时为团队/部门 ID
type Conversation struct {
	Kind Kind
	ID   string
}

// Key 会话在存在性追踪、ClearedChat 等处使用的唯一键
// 私聊用对方 ID，与群 ID 通过类型前缀区分
func (c Conversation) Key() string {
	return c.Kind.String() + ":" + c.ID
}

// Topic 群聊广播主题，私聊返回空串
func (c Conversation) Topic() string {
	if !c.Kind.IsGroup() {
		return ""
	}
	return c.Kind.TopicPrefix() + c.ID
}
