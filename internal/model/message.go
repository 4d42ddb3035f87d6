// Package model 定义数据库实体模型
// 本文件定义消息模型，用于存储私聊、团队、部门消息
package model

import (
	"database/sql"
	"strings"
	"time"
)

// Message 消息模型
// 对应数据库 message 表
// 私聊时 ReceiverID 有值，群聊时 GroupID 有值，二者互斥
type Message struct {
	// ID 消息唯一标识
	// 使用雪花算法生成的 int64 类型 ID，单节点内单调递增
	ID int64 `gorm:"column:id;primaryKey;autoIncrement:false;comment:消息雪花ID"`

	SenderID   string `gorm:"column:sender_id;index;uniqueIndex:idx_sender_client,priority:1;type:varchar(64);not null;comment:发送者ID"`
	ReceiverID string `gorm:"column:receiver_id;index:idx_private,priority:1;type:varchar(64);comment:私聊接收者ID"`
	GroupID    string `gorm:"column:group_id;index:idx_group,priority:1;type:varchar(64);comment:团队/部门ID"`
	Kind       Kind   `gorm:"column:kind;type:varchar(16);not null;comment:会话类型"`

	// Content 文本内容，纯附件消息可为空
	Content string `gorm:"column:content;type:TEXT;comment:消息内容"`

	// 附件元数据，二进制内容由附件存储持有
	FileName      string `gorm:"column:file_name;type:varchar(255);comment:文件名"`
	FileType      string `gorm:"column:file_type;type:varchar(100);comment:文件MIME类型"`
	FileSize      int64  `gorm:"column:file_size;comment:文件字节数"`
	AttachmentKey string `gorm:"column:attachment_key;type:varchar(255);comment:附件存储键"`
	Duration      int    `gorm:"column:duration;comment:语音时长（秒）"`

	Timestamp time.Time `gorm:"column:timestamp;precision:3;index:idx_private,priority:2;index:idx_group,priority:2;not null;comment:发送时间"`

	// Read 私聊已读标记，群聊使用 ReadStatus
	Read    bool `gorm:"column:is_read;not null;default:false;comment:私聊是否已读"`
	Deleted bool `gorm:"column:deleted;not null;default:false;comment:是否已撤回"`
	Edited  bool `gorm:"column:edited;not null;default:false;comment:是否已编辑"`

	Pinned   bool       `gorm:"column:pinned;not null;default:false;comment:是否置顶"`
	PinnedAt *time.Time `gorm:"column:pinned_at;precision:3;comment:置顶时间"`

	Forwarded     bool   `gorm:"column:forwarded;not null;default:false;comment:是否为转发"`
	ForwardedFrom string `gorm:"column:forwarded_from;type:varchar(64);comment:原始作者ID"`

	ReplyToID           sql.NullInt64 `gorm:"column:reply_to_id;comment:回复的消息ID"`
	ReplyPreviewContent string        `gorm:"column:reply_preview_content;type:varchar(512);comment:被回复消息预览"`
	ReplyPreviewSender  string        `gorm:"column:reply_preview_sender;type:varchar(64);comment:被回复消息发送者"`
	ReplyPreviewKind    string        `gorm:"column:reply_preview_kind;type:varchar(16);comment:被回复消息媒体类型"`

	// ClientID 客户端关联 ID，同一发送者内唯一，客户端重试时据此去重；未携带时为 NULL
	ClientID sql.NullString `gorm:"column:client_id;uniqueIndex:idx_sender_client,priority:2;type:varchar(64);comment:客户端关联ID"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "message"
}

// Conversation 从指定用户视角返回消息所属会话
// 私聊时对方是另一端，群聊时就是群本身
func (m *Message) Conversation(viewer string) Conversation {
	if m.Kind.IsGroup() {
		return Conversation{Kind: m.Kind, ID: m.GroupID}
	}
	if viewer == m.SenderID {
		return Conversation{Kind: KindPrivate, ID: m.ReceiverID}
	}
	return Conversation{Kind: KindPrivate, ID: m.SenderID}
}

// FanoutKey 分发通道的分区键，同一会话的消息（私聊不分方向）落在同一分区
func (m *Message) FanoutKey() string {
	if m.Kind.IsGroup() {
		return m.Kind.String() + ":" + m.GroupID
	}
	a, b := m.SenderID, m.ReceiverID
	if a > b {
		a, b = b, a
	}
	return m.Kind.String() + ":" + a + "|" + b
}

// IsParticipant 是否为私聊的收发双方之一
// 群聊消息恒为 false，群成员关系只能向目录服务查询
func (m *Message) IsParticipant(userID string) bool {
	if m.Kind.IsGroup() {
		return false
	}
	return userID == m.SenderID || userID == m.ReceiverID
}

// CorrelationID 客户端关联 ID，未携带时为空串
func (m *Message) CorrelationID() string {
	return m.ClientID.String
}

// SetCorrelationID 空串存为 NULL，不参与唯一约束
func (m *Message) SetCorrelationID(id string) {
	m.ClientID = sql.NullString{String: id, Valid: id != ""}
}

// HasAttachment 是否携带附件
func (m *Message) HasAttachment() bool {
	return m.AttachmentKey != ""
}

// MediaKind 推断媒体类型：image / audio / file / text
func (m *Message) MediaKind() string {
	switch {
	case strings.HasPrefix(m.FileType, "image/"):
		return "image"
	case strings.HasPrefix(m.FileType, "audio/"):
		return "audio"
	case m.FileType != "" || m.HasAttachment():
		return "file"
	}
	return "text"
}
