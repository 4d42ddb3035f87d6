package overview

import (
	"context"

	"employee_chat_server/internal/dto/respond"
	"employee_chat_server/internal/model"
	"employee_chat_server/pkg/constants"

	"go.uber.org/zap"
)

// CacheEvicter 目录缓存维护
type CacheEvicter interface {
	EvictTeam(ctx context.Context, teamID string) error
	EvictEmployee(ctx context.Context, userID string) error
}

// Service 侧边栏查询与目录维护入口
type Service struct {
	builder     *Builder
	broadcaster *Broadcaster
	cache       CacheEvicter
}

// NewService 构造函数，cache 为 nil 时维护接口只做广播
func NewService(builder *Builder, broadcaster *Broadcaster, cache CacheEvicter) *Service {
	return &Service{builder: builder, broadcaster: broadcaster, cache: cache}
}

// Get 查询侧边栏
func (s *Service) Get(ctx context.Context, userID string, page, size int) (*respond.Overview, error) {
	if size <= 0 {
		size = constants.DEFAULT_PAGE_SIZE
	}
	return s.builder.Build(ctx, userID, page, size)
}

// NotifyTeamUpdate 团队成员变化：先失效缓存，再给团队全体成员重推侧边栏
func (s *Service) NotifyTeamUpdate(ctx context.Context, teamID string) error {
	if err := s.EvictTeam(ctx, teamID); err != nil {
		return err
	}
	s.broadcaster.ScheduleGroup(model.KindTeam, teamID)
	zap.L().Info("团队变更，已调度侧边栏广播", zap.String("team_id", teamID))
	return nil
}

// EvictTeam 失效团队相关缓存
func (s *Service) EvictTeam(ctx context.Context, teamID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.EvictTeam(ctx, teamID)
}

// EvictEmployee 失效员工展示信息缓存
func (s *Service) EvictEmployee(ctx context.Context, userID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.EvictEmployee(ctx, userID)
}
