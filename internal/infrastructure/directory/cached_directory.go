package directory

import (
	"context"
	"encoding/json"
	"time"

	myredis "employee_chat_server/internal/dao/redis"
	"employee_chat_server/internal/model"
	"employee_chat_server/pkg/constants"

	"go.uber.org/zap"
)

// 缓存键
const (
	keyMembers  = "directory:members:"  // directory:members:TEAM:{id}
	keyTeams    = "directory:teams:"    // directory:teams:{userId}
	keyEmployee = "directory:employee:" // directory:employee:{userId}
)

// CachedDirectory 带 Redis 缓存的目录服务
// 上游不可用时记录日志并返回空结果，不会把错误抛进分发流程
type CachedDirectory struct {
	upstream Directory
	cache    myredis.CacheService
	ttl      time.Duration
}

// NewCachedDirectory 创建带缓存的目录服务，ttl <= 0 时使用默认过期时间
func NewCachedDirectory(upstream Directory, cache myredis.CacheService, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = constants.REDIS_TIMEOUT
	}
	return &CachedDirectory{upstream: upstream, cache: cache, ttl: ttl}
}

// cached 先读缓存，未命中时回源并回写；缓存故障只降级为直接回源
func cached[T any](ctx context.Context, d *CachedDirectory, key string, load func() (T, error)) (T, error) {
	var out T
	if raw, err := d.cache.Get(ctx, key); err != nil {
		zap.L().Warn("读取目录缓存失败", zap.String("key", key), zap.Error(err))
	} else if raw != "" {
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out, nil
		}
		zap.L().Warn("目录缓存数据损坏", zap.String("key", key))
	}

	out, err := load()
	if err != nil {
		return out, err
	}
	if data, err := json.Marshal(out); err == nil {
		if err := d.cache.Set(ctx, key, string(data), d.ttl); err != nil {
			zap.L().Warn("写入目录缓存失败", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

func (d *CachedDirectory) ListMembers(ctx context.Context, kind model.Kind, groupID string) ([]string, error) {
	key := keyMembers + kind.String() + ":" + groupID
	members, err := cached(ctx, d, key, func() ([]string, error) {
		return d.upstream.ListMembers(ctx, kind, groupID)
	})
	if err != nil {
		zap.L().Warn("获取群成员失败，按无成员处理",
			zap.String("kind", kind.String()), zap.String("group_id", groupID), zap.Error(err))
		return []string{}, nil
	}
	return members, nil
}

func (d *CachedDirectory) TeamsOf(ctx context.Context, userID string) ([]Group, error) {
	groups, err := cached(ctx, d, keyTeams+userID, func() ([]Group, error) {
		return d.upstream.TeamsOf(ctx, userID)
	})
	if err != nil {
		zap.L().Warn("获取用户所属群组失败，按无群组处理", zap.String("user_id", userID), zap.Error(err))
		return []Group{}, nil
	}
	return groups, nil
}

// EmployeeDisplay 上游失败时以用户 ID 作为展示名
func (d *CachedDirectory) EmployeeDisplay(ctx context.Context, userID string) (Employee, error) {
	emp, err := cached(ctx, d, keyEmployee+userID, func() (Employee, error) {
		return d.upstream.EmployeeDisplay(ctx, userID)
	})
	if err != nil {
		zap.L().Warn("获取员工信息失败", zap.String("user_id", userID), zap.Error(err))
		return Employee{ID: userID, Name: userID}, nil
	}
	return emp, nil
}

// EvictTeam 清除团队成员缓存以及所有用户的群组缓存
func (d *CachedDirectory) EvictTeam(ctx context.Context, teamID string) error {
	if err := d.cache.Delete(ctx, keyMembers+model.KindTeam.String()+":"+teamID); err != nil {
		return err
	}
	return d.cache.DeleteByPattern(ctx, keyTeams+"*")
}

// EvictEmployee 清除单个员工的展示信息和群组缓存
func (d *CachedDirectory) EvictEmployee(ctx context.Context, userID string) error {
	if err := d.cache.Delete(ctx, keyEmployee+userID); err != nil {
		return err
	}
	return d.cache.Delete(ctx, keyTeams+userID)
}

var _ Directory = (*CachedDirectory)(nil)
