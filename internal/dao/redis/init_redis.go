// Package redis 提供 Redis 连接初始化与缓存服务
// 使用 github.com/redis/go-redis/v9 作为底层客户端
package redis

import (
	"context"
	"strconv"
	"time"

	"employee_chat_server/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Init 根据配置创建 Redis 客户端并检测连通性
// 客户端同时供目录缓存和 Redis 投递总线使用
func Init(cfg config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.Db,
		PoolSize:     50, // 最大连接数
		MinIdleConns: 10, // 最小空闲连接
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		zap.L().Error("Redis 连接失败，缓存将降级为直连目录服务", zap.Error(err))
	}
	return client
}
