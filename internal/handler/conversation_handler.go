package handler

import (
	"employee_chat_server/internal/dto/request"
	"employee_chat_server/internal/model"
	"employee_chat_server/internal/service"
	"employee_chat_server/internal/service/message"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 会话窗口打开 / 关闭 / 清空
// WebSocket 客户端一般走 ws 的 open / close 动作，这里供纯 HTTP 客户端使用
type ConversationHandler struct {
	svc service.MessageService
}

// NewConversationHandler 创建会话处理器
func NewConversationHandler(svc service.MessageService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

func bindConversation(c *gin.Context) (model.Conversation, bool) {
	var req request.ConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return model.Conversation{}, false
	}
	conv, err := message.ParseConversation(req.Kind, req.ChatID)
	if err != nil {
		HandleError(c, err)
		return model.Conversation{}, false
	}
	return conv, true
}

// Open POST /api/chat/conversation/open
func (h *ConversationHandler) Open(c *gin.Context) {
	conv, ok := bindConversation(c)
	if !ok {
		return
	}
	if err := h.svc.Open(c.Request.Context(), currentUser(c), conv); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}

// Close POST /api/chat/conversation/close
func (h *ConversationHandler) Close(c *gin.Context) {
	conv, ok := bindConversation(c)
	if !ok {
		return
	}
	if err := h.svc.Close(c.Request.Context(), currentUser(c), conv); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}

// Clear POST /api/chat/conversation/clear
func (h *ConversationHandler) Clear(c *gin.Context) {
	conv, ok := bindConversation(c)
	if !ok {
		return
	}
	ack, err := h.svc.Clear(c.Request.Context(), currentUser(c), conv)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, ack)
}
