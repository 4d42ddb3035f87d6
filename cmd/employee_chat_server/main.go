package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"employee_chat_server/internal/config"
	dao "employee_chat_server/internal/dao/mysql"
	myredis "employee_chat_server/internal/dao/redis"
	"employee_chat_server/internal/gateway/websocket"
	"employee_chat_server/internal/handler"
	"employee_chat_server/internal/https_server"
	"employee_chat_server/internal/infrastructure/attachment"
	"employee_chat_server/internal/infrastructure/bus"
	"employee_chat_server/internal/infrastructure/directory"
	"employee_chat_server/internal/infrastructure/logger"
	"employee_chat_server/internal/service"
	"employee_chat_server/internal/service/presence"
	"employee_chat_server/pkg/util/jwt"
	"employee_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()

	// 3. 校验器翻译、雪花 ID、JWT
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Fatal("初始化校验器翻译失败", zap.Error(err))
	}
	snowflake.Init(conf.SnowflakeConfig.MachineID)
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)

	// 4. 数据库与 Redis
	repos := dao.Init()
	zap.L().Info("数据库初始化成功", zap.String("driver", conf.MysqlConfig.Driver))
	redisClient := myredis.Init(conf.RedisConfig)
	defer func() { _ = redisClient.Close() }()

	// 5. 投递总线
	deliveryBus, err := bus.New(conf, redisClient)
	if err != nil {
		zap.L().Fatal("初始化投递总线失败", zap.String("mode", conf.BusConfig.Mode), zap.Error(err))
	}

	// 6. 目录服务（Redis 缓存）与附件存储
	dir := directory.NewCachedDirectory(
		directory.NewHTTPDirectory(conf.DirectoryConfig),
		myredis.NewRedisCache(redisClient),
		conf.DirectoryConfig.CacheTTL*time.Second,
	)
	store, err := attachment.NewDiskStore(conf.StaticSrcConfig.StaticFilePath)
	if err != nil {
		zap.L().Fatal("初始化附件存储失败", zap.Error(err))
	}

	// 7. Service 层
	svc, err := service.NewServices(service.Infra{
		Config:    conf,
		Repos:     repos,
		Presence:  presence.NewTracker(),
		Directory: dir,
		Cache:     dir,
		Bus:       deliveryBus,
		Store:     store,
	})
	if err != nil {
		zap.L().Fatal("初始化 Service 层失败", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	svc.Start(ctx)

	// 8. 会话网关：订阅投递总线
	gateway := websocket.NewGateway(websocket.Deps{
		Messages:  svc.Message,
		Presence:  svc.Presence,
		Directory: svc.Directory,
		Bus:       svc.Bus,
	})
	gatewayDone := make(chan struct{})
	go func() {
		defer close(gatewayDone)
		if err := gateway.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zap.L().Error("投递总线订阅退出", zap.Error(err))
		}
	}()

	// 9. HTTP 服务
	engine := https_server.NewEngine(conf, handler.NewHandlers(svc, gateway))
	server := https_server.New(conf, engine)
	go func() {
		if err := server.Start(); err != nil {
			zap.L().Error("HTTP 服务异常退出", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zap.L().Info("关闭服务器...")

	// 关闭顺序：停止接收请求 -> 断开会话 -> 排空分发 -> 关闭总线
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("HTTP 服务关闭超时", zap.Error(err))
	}
	gateway.Shutdown()
	svc.Close(shutdownTimeout)
	if err := deliveryBus.Close(); err != nil {
		zap.L().Warn("关闭投递总线失败", zap.Error(err))
	}
	select {
	case <-gatewayDone:
	case <-shutdownCtx.Done():
	}
	zap.L().Info("服务器已关闭")
}
