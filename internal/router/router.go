// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"employee_chat_server/internal/handler"
	"employee_chat_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

// APIPrefix 全部接口的前缀
const APIPrefix = "/api/chat"

// Router 路由管理器
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由
// 全部接口都需要认证，用户 ID 取自 Access Token
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { handler.HandleSuccess(c, "ok") })

	api := r.Group(APIPrefix)
	api.Use(middleware.JWTAuth())
	{
		rt.RegisterMessageRoutes(api)      // 消息
		rt.RegisterConversationRoutes(api) // 会话窗口
		rt.RegisterOverviewRoutes(api)     // 侧边栏
		rt.RegisterInternalRoutes(api)     // 目录维护
		rt.RegisterWebSocketRoutes(api)    // WebSocket
	}
}
