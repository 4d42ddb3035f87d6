package respond

import (
	"strconv"
	"time"

	"employee_chat_server/internal/model"
)

// FileURLPrefix 附件下载地址前缀
const FileURLPrefix = "/api/chat/message/file/"

// ReplyPreview 被回复消息的预览
type ReplyPreview struct {
	MessageID int64  `json:"messageId,string"`
	Content   string `json:"content"`
	SenderID  string `json:"senderId"`
	MediaKind string `json:"mediaKind"` // text / image / audio / file
}

// MessageView 推送给客户端和聊天记录共用的消息视图
// 使用位置:
//   - internal/service/distribution: 投递事件
//   - internal/service/message: History / Edit / 置顶
type MessageView struct {
	ID            int64         `json:"id,string"`
	SenderID      string        `json:"senderId"`
	ReceiverID    string        `json:"receiverId,omitempty"`
	GroupID       string        `json:"groupId,omitempty"`
	Kind          model.Kind    `json:"kind"`
	Content       string        `json:"content"`
	FileName      string        `json:"fileName,omitempty"`
	FileType      string        `json:"fileType,omitempty"`
	FileSize      int64         `json:"fileSize,omitempty"`
	FileURL       string        `json:"fileUrl,omitempty"`
	Duration      int           `json:"duration,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
	Seen          bool          `json:"seen"`
	Deleted       bool          `json:"deleted"`
	Edited        bool          `json:"edited"`
	Pinned        bool          `json:"pinned"`
	Forwarded     bool          `json:"forwarded"`
	ForwardedFrom string        `json:"forwardedFrom,omitempty"`
	ReplyTo       *ReplyPreview `json:"replyTo,omitempty"`
	ClientID      string        `json:"clientId,omitempty"`

	// 以下字段仅聊天记录返回
	HistoryKind string `json:"historyKind,omitempty"` // file / reply / forward / send
	Date        string `json:"date,omitempty"`        // 2006-01-02
	Time        string `json:"time,omitempty"`        // 03:04 PM
}

// NewMessageView 由消息实体构建视图
// seen 对私聊取消息的已读标记，对群聊由调用方计算
func NewMessageView(m *model.Message, seen bool) *MessageView {
	v := &MessageView{
		ID:            m.ID,
		SenderID:      m.SenderID,
		ReceiverID:    m.ReceiverID,
		GroupID:       m.GroupID,
		Kind:          m.Kind,
		Content:       m.Content,
		FileName:      m.FileName,
		FileType:      m.FileType,
		FileSize:      m.FileSize,
		Duration:      m.Duration,
		Timestamp:     m.Timestamp,
		Seen:          seen,
		Deleted:       m.Deleted,
		Edited:        m.Edited,
		Pinned:        m.Pinned,
		Forwarded:     m.Forwarded,
		ForwardedFrom: m.ForwardedFrom,
		ClientID:      m.CorrelationID(),
	}
	if m.HasAttachment() {
		v.FileURL = FileURLPrefix + strconv.FormatInt(m.ID, 10)
	}
	if m.ReplyToID.Valid {
		v.ReplyTo = &ReplyPreview{
			MessageID: m.ReplyToID.Int64,
			Content:   m.ReplyPreviewContent,
			SenderID:  m.ReplyPreviewSender,
			MediaKind: m.ReplyPreviewKind,
		}
	}
	return v
}

// WithHistory 填充聊天记录专用字段
func (v *MessageView) WithHistory(loc *time.Location) *MessageView {
	switch {
	case v.FileURL != "":
		v.HistoryKind = "file"
	case v.ReplyTo != nil:
		v.HistoryKind = "reply"
	case v.Forwarded:
		v.HistoryKind = "forward"
	default:
		v.HistoryKind = "send"
	}
	if loc == nil {
		loc = time.UTC
	}
	local := v.Timestamp.In(loc)
	v.Date = local.Format("2006-01-02")
	v.Time = local.Format("03:04 PM")
	return v
}
