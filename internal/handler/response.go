package handler

import (
	"errors"
	"net/http"

	"employee_chat_server/internal/infrastructure/middleware"
	"employee_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResponseData 统一响应结构体
type ResponseData struct {
	Code int `json:"code"`           // 业务响应状态码
	Msg  any `json:"msg"`            // 提示信息
	Data any `json:"data,omitempty"` // 数据
}

// HandleSuccess 返回成功响应
func HandleSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code": errorx.CodeSuccess,
		"msg":  "success",
		"data": data,
	})
}

// HandleError 通用错误处理方法
// 自动识别 errorx.CodeError 类型的业务错误，或者将系统错误转换为 CodeServerBusy
// 使用示例：
//
//	if err := logic.DoSomething(); err != nil {
//	    HandleError(c, err)
//	    return
//	}
func HandleError(c *gin.Context, err error) {
	// 1. 尝试断言为 *errorx.CodeError 类型
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) {
		// 业务错误：直接返回携带的错误码和消息
		if codeErr.Code == errorx.CodeServerBusy || codeErr.Code == errorx.CodeDBError {
			zap.L().Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		}
		c.JSON(http.StatusOK, gin.H{
			"code": codeErr.Code,
			"msg":  codeErr.Msg,
			"data": nil,
		})
		return
	}

	// 2. 存储层未识别的 not found
	if errorx.IsNotFound(err) {
		c.JSON(http.StatusOK, gin.H{
			"code": errorx.CodeNotFound,
			"msg":  "资源不存在",
			"data": nil,
		})
		return
	}

	// 3. 系统错误或未知错误：记录日志并返回服务繁忙
	zap.L().Error("system error",
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Error(err),
	)
	c.JSON(http.StatusOK, gin.H{
		"code": errorx.ErrServerBusy.Code,
		"msg":  errorx.ErrServerBusy.Msg,
		"data": nil,
	})
}

// HandleRetryable 消息已持久化但分发入队失败：返回可重试错误码，同时带上已保存消息的回执
func HandleRetryable(c *gin.Context, err error, data any) {
	zap.L().Warn("message persisted but fanout rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusOK, gin.H{
		"code": errorx.CodeRetryable,
		"msg":  errorx.ErrFanoutFull.Msg,
		"data": data,
	})
}

// HandleParamError 处理参数绑定错误
// 校验错误翻译为 字段 -> 提示；其它错误（JSON 格式错误等）返回通用提示
func HandleParamError(c *gin.Context, err error) {
	if translated := TranslateErrors(err); translated != nil {
		c.JSON(http.StatusOK, gin.H{
			"code": errorx.ErrInvalidParam.Code,
			"msg":  translated,
			"data": nil,
		})
		return
	}

	// 业务层返回的参数错误（如会话类型不合法）直接透传
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) {
		HandleError(c, err)
		return
	}

	zap.L().Warn("param bind error", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusOK, gin.H{
		"code": errorx.ErrInvalidParam.Code,
		"msg":  errorx.ErrInvalidParam.Msg,
		"data": nil,
	})
}

// currentUser 鉴权中间件写入的用户 ID
func currentUser(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}
