package request

// SendMessageRequest 发送消息请求
// 使用位置:
//   - internal/handler/message_handler.go: Send
//   - internal/gateway/websocket/client.go: action=send
//
// 私聊填 receiverId，团队 / 部门填 groupId
type SendMessageRequest struct {
	Kind       string `json:"kind" form:"kind" binding:"required,oneof=PRIVATE TEAM DEPARTMENT"`
	ReceiverID string `json:"receiverId" form:"receiverId"`
	GroupID    string `json:"groupId" form:"groupId"`
	Content    string `json:"content" form:"content" binding:"max=4000"`
	ClientID   string `json:"clientId" form:"clientId" binding:"max=64"`
}

// ChatID 私聊返回 receiverId，群聊返回 groupId
func (r *SendMessageRequest) ChatID() string {
	if r.Kind == "PRIVATE" {
		return r.ReceiverID
	}
	return r.GroupID
}

// UploadMessageRequest 附件消息的表单字段（文件本身走 multipart "file"）
// 使用位置:
//   - internal/handler/message_handler.go: Upload
type UploadMessageRequest struct {
	SendMessageRequest
	Duration int `form:"duration" binding:"min=0"` // 语音时长（秒）
}

// EditMessageRequest 编辑消息请求
// 使用位置:
//   - internal/handler/message_handler.go: Edit
type EditMessageRequest struct {
	Content string `json:"content" binding:"required,max=4000"`
}

// HistoryRequest 聊天记录分页请求，page 从 0 开始
// 使用位置:
//   - internal/handler/message_handler.go: History
type HistoryRequest struct {
	Kind   string `form:"kind" binding:"required,oneof=PRIVATE TEAM DEPARTMENT"`
	ChatID string `form:"chatId" binding:"required"`
	Page   int    `form:"page" binding:"min=0"`
	Size   int    `form:"size" binding:"min=0,max=100"`
}

// ReplyRequest 回复消息请求
// 使用位置:
//   - internal/handler/compose_handler.go: Reply
type ReplyRequest struct {
	OriginalMessageID int64  `json:"originalMessageId,string" binding:"required"`
	Kind              string `json:"kind" binding:"required,oneof=PRIVATE TEAM DEPARTMENT"`
	ReceiverID        string `json:"receiverId"`
	GroupID           string `json:"groupId"`
	Content           string `json:"content" binding:"required,max=4000"`
	ClientID          string `json:"clientId" binding:"max=64"`
}

// ForwardTarget 转发目标，receiverId 与 groupId 至少填一个
type ForwardTarget struct {
	Kind       string `json:"kind"`
	ReceiverID string `json:"receiverId"`
	GroupID    string `json:"groupId"`
}

// ForwardRequest 转发消息请求
// 使用位置:
//   - internal/handler/compose_handler.go: Forward
type ForwardRequest struct {
	MessageID int64           `json:"messageId,string" binding:"required"`
	Targets   []ForwardTarget `json:"targets" binding:"required,min=1,max=50,dive"`
}
