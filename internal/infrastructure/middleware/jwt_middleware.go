package middleware

import (
	"net/http"
	"strings"

	"employee_chat_server/pkg/errorx"
	"employee_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
)

// ContextUserID 上下文中保存当前用户 ID 的键
const ContextUserID = "user_id"

// JWTAuth JWT 认证中间件
// 身份由外部系统签发，这里只校验 Access Token 并解析出用户 ID。
// 浏览器的 WebSocket 握手无法带 Header，因此也接受 ?token= 查询参数
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abort(c, "请先登录")
			return
		}

		claims, err := jwt.ParseToken(token)
		if err != nil {
			abort(c, "Token 已过期或无效，请重新登录")
			return
		}
		if claims.Subject != "access_token" {
			abort(c, "请使用 Access Token 访问此接口")
			return
		}
		if claims.UserID == "" {
			abort(c, "Token 缺少用户信息")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if q := c.Query("token"); q != "" {
		return q, true
	}
	return "", false
}

func abort(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": errorx.CodeUnauthorized,
		"msg":  msg,
	})
}
