package respond

import (
	"time"

	"employee_chat_server/internal/model"
)

// ConversationPreview 侧边栏单个会话的预览
// 使用位置:
//   - internal/service/overview: Build / Broadcast
type ConversationPreview struct {
	ChatID          string     `json:"chatId"`
	Kind            model.Kind `json:"kind"`
	Name            string     `json:"name"`
	LastMessage     string     `json:"lastMessage"`
	LastMessageAt   *time.Time `json:"lastMessageAt"` // 清空后无新消息时为 null，排在最后
	LastSenderID    string     `json:"lastSenderId,omitempty"`
	LastMessageKind string     `json:"lastMessageKind,omitempty"` // text / image / audio / file
	UnreadCount     int64      `json:"unreadCount"`
	Online          *bool      `json:"online,omitempty"`      // 仅私聊
	MemberCount     int        `json:"memberCount,omitempty"` // 仅群聊
	ProfileLink     string     `json:"profileLink,omitempty"` // 仅私聊
}

// Overview 侧边栏分页结果
type Overview struct {
	Items []ConversationPreview `json:"items"`
	Page  int                   `json:"page"`
	Size  int                   `json:"size"`
	Total int                   `json:"total"`
}
