// Package event 定义投递总线上传递的事件
// 每个后端实例都会收到全部事件，只推送给本机在线的会话
package event

import (
	"encoding/json"

	"employee_chat_server/internal/dto/respond"

	"github.com/google/uuid"
)

// Type 事件类型
type Type string

const (
	// 消息类事件，网关按会话类型路由（私聊 / 群主题）
	TypeMessage Type = "MESSAGE"
	TypeDeleted Type = "DELETED"
	TypeEdited  Type = "EDITED"

	// 直推类事件，直接推到 TargetUser 的队列或 Topic
	TypePinUpdate    Type = "PIN_UPDATE"
	TypeUnpinUpdate  Type = "UNPIN_UPDATE"
	TypeStatusUpdate Type = "STATUS_UPDATE"
	TypeSidebar      Type = "SIDEBAR"
	TypePresence     Type = "PRESENCE"
	TypeTyping       Type = "TYPING"
	TypeClear        Type = "CLEAR"
)

// Envelope 总线消息
type Envelope struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`

	// 消息类事件
	Message *respond.MessageView `json:"message,omitempty"`

	// 直推类事件：TargetUser 与 Topic 二选一
	TargetUser  string          `json:"targetUser,omitempty"`
	Topic       string          `json:"topic,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// IsMessage 是否为需要按会话路由的消息类事件
func (e *Envelope) IsMessage() bool {
	return e.Type == TypeMessage || e.Type == TypeDeleted || e.Type == TypeEdited
}

// NewMessageEnvelope 构建消息类事件
func NewMessageEnvelope(t Type, view *respond.MessageView) *Envelope {
	return &Envelope{ID: uuid.NewString(), Type: t, Message: view}
}

// ToUser 构建推送给某个用户队列的事件
func ToUser(t Type, userID, destination string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{ID: uuid.NewString(), Type: t, TargetUser: userID, Destination: destination, Payload: raw}, nil
}

// ToTopic 构建推送给某个主题全部订阅者的事件
func ToTopic(t Type, topic string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{ID: uuid.NewString(), Type: t, Topic: topic, Destination: topic, Payload: raw}, nil
}
