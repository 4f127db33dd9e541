package middleware

import (
	constants "CityWatch/pkg/constant"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// InjectDB 把数据库句柄放入请求上下文
func InjectDB(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(constants.DbField, db.WithContext(c.Request.Context()))
		c.Next()
	}
}

// GetDB 取出 InjectDB 注入的句柄
func GetDB(c *gin.Context) (*gorm.DB, bool) {
	v, ok := c.Get(constants.DbField)
	if !ok {
		return nil, false
	}
	db, ok := v.(*gorm.DB)
	return db, ok
}
