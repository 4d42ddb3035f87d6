package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionServer WebSocket 会话入口
type SessionServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string) error
}

// WsHandler WebSocket 连接
type WsHandler struct {
	gateway SessionServer
}

// NewWsHandler 创建 WebSocket 处理器
func NewWsHandler(gateway SessionServer) *WsHandler {
	return &WsHandler{gateway: gateway}
}

// Connect 升级为 WebSocket 连接
// GET /api/chat/ws （Authorization 头或 ?token=）
// 同一用户可以同时建立多个连接（多端登录）
func (h *WsHandler) Connect(c *gin.Context) {
	userID := currentUser(c)
	if err := h.gateway.ServeWS(c.Writer, c.Request, userID); err != nil {
		// Upgrade 失败时 gorilla 已写出 HTTP 错误响应
		zap.L().Warn("ws upgrade failed", zap.String("user_id", userID), zap.Error(err))
	}
}
