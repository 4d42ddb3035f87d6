package handler

import (
	"employee_chat_server/internal/dto/request"
	"employee_chat_server/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OverviewHandler 侧边栏与目录缓存维护
type OverviewHandler struct {
	svc service.OverviewService
}

// NewOverviewHandler 创建侧边栏处理器
func NewOverviewHandler(svc service.OverviewService) *OverviewHandler {
	return &OverviewHandler{svc: svc}
}

// Get 侧边栏分页
// GET /api/chat/overview?page=0&size=10
func (h *OverviewHandler) Get(c *gin.Context) {
	var req request.OverviewRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.svc.Get(c.Request.Context(), currentUser(c), req.Page, req.Size)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// NotifyTeamUpdate 目录服务在团队成员变化后回调
// POST /api/chat/internal/notify-team-update
func (h *OverviewHandler) NotifyTeamUpdate(c *gin.Context) {
	var req request.TeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.svc.NotifyTeamUpdate(c.Request.Context(), req.TeamID); err != nil {
		HandleError(c, err)
		return
	}
	zap.L().Info("notify team update", zap.String("team_id", req.TeamID), zap.String("caller", currentUser(c)))
	HandleSuccess(c, nil)
}

// EvictTeam POST /api/chat/internal/cache/evict-team
func (h *OverviewHandler) EvictTeam(c *gin.Context) {
	var req request.TeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.svc.EvictTeam(c.Request.Context(), req.TeamID); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}

// EvictEmployee POST /api/chat/internal/cache/evict-employee
func (h *OverviewHandler) EvictEmployee(c *gin.Context) {
	var req request.EmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if err := h.svc.EvictEmployee(c.Request.Context(), req.EmployeeID); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}
