package model

import "time"

// ClearedChat 清空聊天边界
// 同一用户同一会话只有一行，再次清空覆盖时间；ConversationKey 取 Conversation.Key()
type ClearedChat struct {
	ID              uint      `gorm:"primaryKey"`
	UserID          string    `gorm:"column:user_id;uniqueIndex:uk_user_conversation,priority:1;type:varchar(64);not null;comment:用户ID"`
	ConversationKey string    `gorm:"column:conversation_key;uniqueIndex:uk_user_conversation,priority:2;type:varchar(96);not null;comment:会话键"`
	ClearedAt       time.Time `gorm:"column:cleared_at;precision:3;not null;comment:清空时间"`
}

func (ClearedChat) TableName() string {
	return "cleared_chat"
}

// HiddenMessage 仅对自己删除的消息标记，不影响消息本身
type HiddenMessage struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    string    `gorm:"column:user_id;uniqueIndex:uk_user_message,priority:1;type:varchar(64);not null;comment:用户ID"`
	MessageID int64     `gorm:"column:message_id;uniqueIndex:uk_user_message,priority:2;index;not null;comment:消息ID"`
	HiddenAt  time.Time `gorm:"column:hidden_at;precision:3;not null;comment:隐藏时间"`
}

func (HiddenMessage) TableName() string {
	return "hidden_message"
}
