// Package https_server 提供 HTTP 服务器的初始化和配置
// 负责创建 Gin 引擎实例并配置中间件和路由
package https_server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"employee_chat_server/internal/config"
	"employee_chat_server/internal/handler"
	"employee_chat_server/internal/infrastructure/logger"
	"employee_chat_server/internal/infrastructure/middleware"
	"employee_chat_server/internal/router"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewEngine 创建 Gin 引擎
// 配置顺序：
//  1. 日志和恢复中间件
//  2. 安全响应头
//  3. CORS 跨域规则
//  4. 业务路由
func NewEngine(conf *config.Config, handlers *handler.Handlers) *gin.Engine {
	if conf.MainConfig.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))
	engine.Use(middleware.SecureHeaders(conf.SecurityConfig, conf.MainConfig))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // 生产环境应指定具体域名
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	router.NewRouter(handlers).RegisterRoutes(engine)
	return engine
}

// Server HTTP 服务器，支持优雅关闭
type Server struct {
	srv *http.Server
}

// New 创建 HTTP 服务器
func New(conf *config.Config, engine *gin.Engine) *Server {
	return &Server{srv: &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start 阻塞监听，正常关闭时返回 nil
func (s *Server) Start() error {
	zap.L().Info("HTTP 服务启动", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 停止接收新请求并等待在途请求结束
// 已升级的 WebSocket 连接不受 http.Server 管理，由网关自行关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
