package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter - HTTP 라우터 구성
func NewRouter(history *HistoryHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	router.GET("/ping", Ping)
	router.GET("/", Root)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.GET("/history", history.ListHistory)
	api.GET("/alerts/seen", history.ListSeenAlerts)

	return router
}
