package middleware

import (
	constants "CityWatch/pkg/constant"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID 透传或生成请求 ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(constants.RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(constants.RequestIDField, id)
		c.Header(constants.RequestIDHeader, id)
		c.Next()
	}
}
