package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// SignatureMaxSkew 请求时间戳允许的偏差
const SignatureMaxSkew = 5 * time.Minute

// SignatureMaxBody 参与签名的请求体上限
const SignatureMaxBody = 1 << 20

// Sign 生成 HMAC 签名，签名数据为 方法 + 路径 + 请求体 + 时间戳
func Sign(secretKey, method, path string, body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignVerifyMiddleware 校验外部系统调用的签名，secret 为空时拒绝全部请求
func SignVerifyMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			abortSign(c, http.StatusServiceUnavailable, "integration is not configured")
			return
		}
		signature := c.GetHeader("Signature")
		if signature == "" {
			abortSign(c, http.StatusUnauthorized, "signature is missing")
			return
		}
		timestamp := c.Query("timestamp")
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			abortSign(c, http.StatusBadRequest, "timestamp is missing or invalid")
			return
		}
		if skew := time.Since(time.Unix(ts, 0)); skew > SignatureMaxSkew || skew < -SignatureMaxSkew {
			abortSign(c, http.StatusUnauthorized, "timestamp expired")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, SignatureMaxBody))
		if err != nil {
			abortSign(c, http.StatusBadRequest, "request body is unreadable or too large")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		expected := Sign(secret, c.Request.Method, c.Request.URL.Path, body, timestamp)
		if !hmac.Equal([]byte(signature), []byte(expected)) {
			abortSign(c, http.StatusUnauthorized, "invalid signature")
			return
		}
		c.Next()
	}
}

func abortSign(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
