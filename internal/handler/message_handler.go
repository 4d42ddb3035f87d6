// Package handler 提供 HTTP 请求处理器
// 本文件处理消息发送、附件、聊天记录与消息状态变更
package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"employee_chat_server/internal/dto/request"
	"employee_chat_server/internal/dto/respond"
	"employee_chat_server/internal/model"
	"employee_chat_server/internal/service"
	"employee_chat_server/internal/service/message"
	"employee_chat_server/pkg/constants"
	"employee_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MessageHandler 消息请求处理器
type MessageHandler struct {
	svc service.MessageService
}

// NewMessageHandler 创建消息处理器
func NewMessageHandler(svc service.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

// ackOf 发送成功后返回给调用方的回执
func ackOf(m *model.Message) respond.Ack {
	chatID := m.ReceiverID
	if m.Kind.IsGroup() {
		chatID = m.GroupID
	}
	return respond.Ack{
		ClientID:  m.CorrelationID(),
		MessageID: m.ID,
		Kind:      m.Kind,
		ChatID:    chatID,
		Timestamp: m.Timestamp,
		Seen:      m.Read,
	}
}

func messageID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorx.Newf(errorx.CodeInvalidParam, "非法的消息 ID %q", c.Param("id"))
	}
	return id, nil
}

// Send 发送文本消息
// POST /api/chat/message/send
// 持久化成功即返回；分发队列已满时返回 1012，消息已保存，客户端可凭 clientId 重试
func (h *MessageHandler) Send(c *gin.Context) {
	var req request.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	m, err := h.svc.Send(c.Request.Context(), currentUser(c), req)
	if err != nil {
		if m != nil && errorx.IsRetryable(err) {
			HandleRetryable(c, err, ackOf(m))
			return
		}
		HandleError(c, err)
		return
	}
	HandleSuccess(c, ackOf(m))
}

// Upload 发送附件消息
// POST /api/chat/message/upload  multipart: file + kind/receiverId/groupId/content/clientId/duration
func (h *MessageHandler) Upload(c *gin.Context) {
	var req request.UploadMessageRequest
	if err := c.ShouldBind(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		HandleError(c, errorx.Wrap(err, errorx.CodeInvalidParam, "缺少附件 file"))
		return
	}
	if fh.Size > constants.FILE_MAX_SIZE {
		HandleError(c, errorx.Newf(errorx.CodeInvalidParam, "附件超过 %d MB", constants.FILE_MAX_SIZE>>20))
		return
	}
	f, err := fh.Open()
	if err != nil {
		HandleError(c, err)
		return
	}
	defer f.Close()

	m, err := h.svc.Upload(c.Request.Context(), currentUser(c), req, fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		if m != nil && errorx.IsRetryable(err) {
			HandleRetryable(c, err, respond.NewMessageView(m, m.Read))
			return
		}
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.NewMessageView(m, m.Read))
}

// File 下载附件
// GET /api/chat/message/file/:id
func (h *MessageHandler) File(c *gin.Context) {
	id, err := messageID(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	m, rc, err := h.svc.OpenFile(c.Request.Context(), currentUser(c), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	defer rc.Close()

	disposition := fmt.Sprintf("inline; filename*=UTF-8''%s", url.PathEscape(m.FileName))
	c.DataFromReader(http.StatusOK, m.FileSize, m.FileType, rc, map[string]string{
		"Content-Disposition": disposition,
	})
}

// History 聊天记录
// GET /api/chat/message/history?kind=PRIVATE&chatId=u2&page=0&size=15&tz=Asia/Shanghai
func (h *MessageHandler) History(c *gin.Context) {
	var req request.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	conv, err := message.ParseConversation(req.Kind, req.ChatID)
	if err != nil {
		HandleError(c, err)
		return
	}
	loc := time.UTC
	if tz := c.Query("tz"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			zap.L().Debug("忽略无法识别的时区", zap.String("tz", tz))
		}
	}
	views, err := h.svc.History(c.Request.Context(), currentUser(c), conv, req.Page, req.Size, loc)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, views)
}

// Edit 编辑消息（仅发送者）
// PUT /api/chat/message/:id
func (h *MessageHandler) Edit(c *gin.Context) {
	id, err := messageID(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	var req request.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	view, err := h.svc.Edit(c.Request.Context(), currentUser(c), id, req.Content)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, view)
}

// DeleteForMe DELETE /api/chat/message/:id/me
func (h *MessageHandler) DeleteForMe(c *gin.Context) {
	h.byID(c, h.svc.DeleteForMe)
}

// DeleteForEveryone DELETE /api/chat/message/:id/everyone
func (h *MessageHandler) DeleteForEveryone(c *gin.Context) {
	h.byID(c, h.svc.DeleteForEveryone)
}

// HardDelete DELETE /api/chat/message/:id/hard
func (h *MessageHandler) HardDelete(c *gin.Context) {
	h.byID(c, h.svc.HardDelete)
}

func (h *MessageHandler) byID(c *gin.Context, op func(ctx context.Context, userID string, id int64) error) {
	id, err := messageID(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	if err := op(c.Request.Context(), currentUser(c), id); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, gin.H{"messageId": strconv.FormatInt(id, 10)})
}

// Pin POST /api/chat/message/:id/pin
func (h *MessageHandler) Pin(c *gin.Context) {
	id, err := messageID(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	update, err := h.svc.Pin(c.Request.Context(), currentUser(c), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, update)
}

// Unpin POST /api/chat/message/:id/unpin
func (h *MessageHandler) Unpin(c *gin.Context) {
	id, err := messageID(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	update, err := h.svc.Unpin(c.Request.Context(), currentUser(c), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, update)
}

// Pinned 会话当前置顶消息，没有时 data 为 null
// GET /api/chat/message/pinned?kind=TEAM&chatId=t1
func (h *MessageHandler) Pinned(c *gin.Context) {
	var req request.ConversationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	conv, err := message.ParseConversation(req.Kind, req.ChatID)
	if err != nil {
		HandleError(c, err)
		return
	}
	pinned, err := h.svc.Pinned(c.Request.Context(), currentUser(c), conv)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, pinned)
}
