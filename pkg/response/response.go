package response

import (
	"CityWatch/pkg/errors"
	"CityWatch/pkg/logger"
	"net/http"

	constants "CityWatch/pkg/constant"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Body 统一响应结构
type Body struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

func Success(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, Body{Success: true, Message: msg, Data: data})
}

func Created(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusCreated, Body{Success: true, Message: msg, Data: data})
}

// Fail 参数错误，返回 400
func Fail(c *gin.Context, msg string, details any) {
	AbortWithStatus(c, http.StatusBadRequest, msg, details)
}

func AbortWithStatus(c *gin.Context, status int, msg string, details any) {
	c.AbortWithStatusJSON(status, Body{Success: false, Error: msg, Details: details})
}

// AbortWithError 根据错误类型选择状态码，5xx 会记录日志
func AbortWithError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(constants.RequestIDField)),
			zap.String("stack", errors.GetStack(err)),
		)
	}
	_ = c.Error(err)
	AbortWithStatus(c, status, errors.PublicMessage(err), nil)
}
