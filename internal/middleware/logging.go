// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"vector-pipeline-go/pkg/log"
)

// RequestLogger 是一个 Gin 中间件，用于记录请求访问日志。
// 上传接口的请求体是二进制文件，这里只记录元信息，不捕获 body。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		latency := time.Since(startTime)
		fields := []interface{}{
			"statusCode", c.Writer.Status(),
			"latency", latency.String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		}
		if !strings.HasPrefix(c.ContentType(), "multipart/") {
			fields = append(fields, "contentLength", c.Request.ContentLength)
		}
		log.Infow("HTTP Request Log", fields...)
	}
}
