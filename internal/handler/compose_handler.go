package handler

import (
	"employee_chat_server/internal/dto/request"
	"employee_chat_server/internal/dto/respond"
	"employee_chat_server/internal/service"
	"employee_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// ComposeHandler 回复与转发
type ComposeHandler struct {
	svc service.ComposeService
}

// NewComposeHandler 创建回复 / 转发处理器
func NewComposeHandler(svc service.ComposeService) *ComposeHandler {
	return &ComposeHandler{svc: svc}
}

// Reply 回复消息
// POST /api/chat/message/reply
func (h *ComposeHandler) Reply(c *gin.Context) {
	var req request.ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	m, err := h.svc.Reply(c.Request.Context(), currentUser(c), req)
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

// Forward 转发消息到一个或多个会话
// POST /api/chat/message/forward
// 部分目标入队失败时返回 1012，data 中为已保存的消息回执
func (h *ComposeHandler) Forward(c *gin.Context) {
	var req request.ForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	msgs, err := h.svc.Forward(c.Request.Context(), currentUser(c), req)
	acks := make([]respond.Ack, 0, len(msgs))
	for _, m := range msgs {
		if m != nil {
			acks = append(acks, ackOf(m))
		}
	}
	if err != nil {
		if len(acks) > 0 && errorx.IsRetryable(err) {
			HandleRetryable(c, err, acks)
			return
		}
		HandleError(c, err)
		return
	}
	HandleSuccess(c, acks)
}
