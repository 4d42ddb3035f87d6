package middleware

import (
	"strconv"

	"employee_chat_server/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// SecureHeaders 安全响应头，可选 HTTP -> HTTPS 重定向
// Nginx 终止 TLS 时关闭 SSLRedirect，只保留响应头
func SecureHeaders(cfg config.SecurityConfig, main config.MainConfig) gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		SSLRedirect:          cfg.SSLRedirect,
		SSLHost:              main.Host + ":" + strconv.Itoa(main.Port),
		AllowedHosts:         cfg.AllowedHosts,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		IsDevelopment:        main.Mode == "dev",
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
		ReferrerPolicy:       "same-origin",
	})

	return func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			// 不能 Fatal，记录后终止当前请求
			zap.L().Warn("secure middleware rejected request", zap.String("host", c.Request.Host), zap.Error(err))
			c.Abort()
			return
		}
		// 重定向时 secure 已写出响应
		if status := c.Writer.Status(); status > 300 && status < 399 {
			c.Abort()
			return
		}
		c.Next()
	}
}
