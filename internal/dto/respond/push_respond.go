package respond

import (
	"time"

	"employee_chat_server/internal/model"
)

// 私聊状态
const (
	StatusSeen      = "SEEN"
	StatusDelivered = "DELIVERED"
)

// StatusUpdate 推送给发送者的私聊状态变化
type StatusUpdate struct {
	Type       string   `json:"type"` // 固定 STATUS_UPDATE
	Status     string   `json:"status"`
	ChatID     string   `json:"chatId"` // 发送者视角的会话 ID，即对方用户 ID
	MessageIDs []string `json:"messageIds"`
}

// Ack 消息持久化回执，客户端用 clientId 匹配本地"发送中"的消息
type Ack struct {
	ClientID  string     `json:"clientId,omitempty"`
	MessageID int64      `json:"messageId,string"`
	Kind      model.Kind `json:"kind"`
	ChatID    string     `json:"chatId"`
	Timestamp time.Time  `json:"timestamp"`
	Seen      bool       `json:"seen"`
}

// PinUpdate 置顶 / 取消置顶事件
type PinUpdate struct {
	Type      string       `json:"type"` // PIN_UPDATE / UNPIN_UPDATE
	Kind      model.Kind   `json:"kind"`
	ChatID    string       `json:"chatId"`
	MessageID int64        `json:"messageId,string"`
	Message   *MessageView `json:"message,omitempty"`
}

// ClearAck 清空聊天回执
type ClearAck struct {
	Message string     `json:"message"`
	Kind    model.Kind `json:"kind"`
	ChatID  string     `json:"chatId"`
}

// Presence 在线状态变化
type Presence struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// Typing 正在输入提示
type Typing struct {
	SenderID string     `json:"senderId"`
	Kind     model.Kind `json:"kind"`
	ChatID   string     `json:"chatId"`
	Typing   bool       `json:"typing"`
}

// PinnedMessage 会话置顶消息查询结果
type PinnedMessage struct {
	*MessageView
	MediaKind string `json:"mediaKind"`
}
