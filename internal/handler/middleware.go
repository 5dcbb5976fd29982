package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RequestLogger - gin 기본 로거 대신 zerolog로 요청 로그 기록
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// 헬스체크/메트릭 수집은 debug 레벨
		event := log.Info()
		if path := c.FullPath(); path == "/ping" || path == "/metrics" {
			event = log.Debug()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}
