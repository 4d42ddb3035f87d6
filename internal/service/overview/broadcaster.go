package overview

import (
	"context"
	"time"

	"employee_chat_server/internal/config"
	"employee_chat_server/internal/dto/event"
	"employee_chat_server/internal/infrastructure/directory"
	"employee_chat_server/internal/model"
	"employee_chat_server/pkg/constants"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// broadcastTimeout 单个用户侧边栏计算 + 推送的超时
const broadcastTimeout = 10 * time.Second

// groupFanout 群广播时同时计算的成员数
const groupFanout = 8

// Broadcaster 在协程池中异步计算并推送侧边栏，调用方不等待结果
type Broadcaster struct {
	builder   *Builder
	directory directory.Directory
	bus       Publisher
	pool      *ants.Pool
	pageSize  int
}

// NewBroadcaster 创建异步广播器
func NewBroadcaster(builder *Builder, dir directory.Directory, bus Publisher, cfg config.OverviewConfig) (*Broadcaster, error) {
	workers := cfg.BroadcastWorkers
	if workers <= 0 {
		workers = 20
	}
	pool, err := ants.NewPool(workers,
		ants.WithMaxBlockingTasks(cfg.BroadcastQueue),
		ants.WithPanicHandler(func(p any) {
			zap.L().Error("侧边栏广播 panic", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, err
	}
	size := cfg.DefaultPageSize
	if size <= 0 {
		size = constants.DEFAULT_PAGE_SIZE
	}
	return &Broadcaster{builder: builder, directory: dir, bus: bus, pool: pool, pageSize: size}, nil
}

// Schedule 异步刷新若干用户的侧边栏第一页
func (b *Broadcaster) Schedule(userIDs ...string) {
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		id := id
		b.submit(func() { b.BroadcastOverview(context.Background(), id) })
	}
}

// ScheduleGroup 异步刷新群内所有成员的侧边栏
func (b *Broadcaster) ScheduleGroup(kind model.Kind, groupID string) {
	b.submit(func() { b.BroadcastGroupOverview(context.Background(), kind, groupID) })
}

func (b *Broadcaster) submit(task func()) {
	if err := b.pool.Submit(task); err != nil {
		zap.L().Warn("侧边栏广播任务提交失败", zap.Error(err))
	}
}

// BroadcastOverview 同步计算并推送用户的侧边栏第一页
func (b *Broadcaster) BroadcastOverview(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(ctx, broadcastTimeout)
	defer cancel()

	ov, err := b.builder.Build(ctx, userID, 0, b.pageSize)
	if err != nil {
		zap.L().Error("计算侧边栏失败", zap.String("user_id", userID), zap.Error(err))
		return
	}
	env, err := event.ToUser(event.TypeSidebar, userID, constants.DestSidebar, ov)
	if err != nil {
		zap.L().Error("序列化侧边栏失败", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if err := b.bus.Publish(ctx, env); err != nil {
		zap.L().Warn("推送侧边栏失败", zap.String("user_id", userID), zap.Error(err))
	}
}

// BroadcastGroupOverview 同步刷新群内所有成员的侧边栏
func (b *Broadcaster) BroadcastGroupOverview(ctx context.Context, kind model.Kind, groupID string) {
	members, err := b.directory.ListMembers(ctx, kind, groupID)
	if err != nil {
		zap.L().Warn("获取群成员失败，跳过群侧边栏广播", zap.String("group_id", groupID), zap.Error(err))
		return
	}
	var g errgroup.Group
	g.SetLimit(groupFanout)
	for _, member := range members {
		member := member
		g.Go(func() error {
			b.BroadcastOverview(ctx, member)
			return nil
		})
	}
	_ = g.Wait()
}

// Close 等待在途任务完成后释放协程池
func (b *Broadcaster) Close(timeout time.Duration) {
	if err := b.pool.ReleaseTimeout(timeout); err != nil {
		zap.L().Warn("侧边栏协程池关闭超时", zap.Error(err))
	}
}
