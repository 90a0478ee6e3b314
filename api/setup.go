package api

import (
	"contracthub/internal/auth"
	"contracthub/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 设置并返回 Gin 路由
func SetupRouter(container *AppContainer) *gin.Engine {
	router := gin.New()

	// 全局中间件
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(CORS())
	router.Use(metrics.PrometheusMiddleware())

	// 公开端点（不需要认证）
	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(container.DB, container.RedisClient))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(auth.AuthMiddleware(container.JWT))
	RegisterRoutes(api, container.InitHandlers())

	return router
}
