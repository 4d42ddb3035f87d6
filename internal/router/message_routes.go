// Package router 提供 HTTP 路由注册
// 本文件定义消息、会话窗口与侧边栏相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterMessageRoutes 注册消息相关路由
func (rt *Router) RegisterMessageRoutes(rg *gin.RouterGroup) {
	h := rt.handlers.Message
	messageGroup := rg.Group("/message")
	{
		messageGroup.POST("/send", h.Send)                        // 发送文本消息
		messageGroup.POST("/upload", h.Upload)                    // 发送附件消息
		messageGroup.GET("/file/:id", h.File)                     // 下载附件
		messageGroup.GET("/history", h.History)                   // 聊天记录
		messageGroup.GET("/pinned", h.Pinned)                     // 会话置顶消息
		messageGroup.PUT("/:id", h.Edit)                          // 编辑
		messageGroup.DELETE("/:id/me", h.DeleteForMe)             // 仅对我删除
		messageGroup.DELETE("/:id/everyone", h.DeleteForEveryone) // 全员撤回
		messageGroup.DELETE("/:id/hard", h.HardDelete)            // 物理删除
		messageGroup.POST("/:id/pin", h.Pin)                      // 置顶
		messageGroup.POST("/:id/unpin", h.Unpin)                  // 取消置顶

		messageGroup.POST("/reply", rt.handlers.Compose.Reply)     // 回复
		messageGroup.POST("/forward", rt.handlers.Compose.Forward) // 转发
	}
}

// RegisterConversationRoutes 注册会话窗口路由
func (rt *Router) RegisterConversationRoutes(rg *gin.RouterGroup) {
	conversationGroup := rg.Group("/conversation")
	{
		conversationGroup.POST("/open", rt.handlers.Conversation.Open)
		conversationGroup.POST("/close", rt.handlers.Conversation.Close)
		conversationGroup.POST("/clear", rt.handlers.Conversation.Clear)
	}
}

// RegisterOverviewRoutes 注册侧边栏路由
func (rt *Router) RegisterOverviewRoutes(rg *gin.RouterGroup) {
	rg.GET("/overview", rt.handlers.Overview.Get)
}

// RegisterInternalRoutes 注册目录服务回调与缓存维护路由
func (rt *Router) RegisterInternalRoutes(rg *gin.RouterGroup) {
	internalGroup := rg.Group("/internal")
	{
		internalGroup.POST("/notify-team-update", rt.handlers.Overview.NotifyTeamUpdate)
		internalGroup.POST("/cache/evict-team", rt.handlers.Overview.EvictTeam)
		internalGroup.POST("/cache/evict-employee", rt.handlers.Overview.EvictEmployee)
	}
}
