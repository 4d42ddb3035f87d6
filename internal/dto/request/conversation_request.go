package request

// ConversationRequest 指定一个会话（打开 / 关闭 / 清空 / 查询置顶）
// 私聊 chatId 为对方用户 ID，群聊为团队 / 部门 ID
// 使用位置:
//   - internal/handler/conversation_handler.go
//   - internal/handler/message_handler.go: Pinned
type ConversationRequest struct {
	Kind   string `json:"kind" form:"kind" binding:"required,oneof=PRIVATE TEAM DEPARTMENT"`
	ChatID string `json:"chatId" form:"chatId" binding:"required"`
}

// OverviewRequest 侧边栏分页请求，page 从 0 开始
// 使用位置:
//   - internal/handler/overview_handler.go: Get
type OverviewRequest struct {
	Page int `form:"page" binding:"min=0"`
	Size int `form:"size" binding:"min=0,max=100"`
}

// TeamRequest 团队维护请求
// 使用位置:
//   - internal/handler/overview_handler.go
type TeamRequest struct {
	TeamID string `json:"teamId" binding:"required"`
}

// EmployeeRequest 员工缓存维护请求
// 使用位置:
//   - internal/handler/overview_handler.go: EvictEmployee
type EmployeeRequest struct {
	EmployeeID string `json:"employeeId" binding:"required"`
}
