package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wingo-engine/metrics"
)

func MetricsRoutes(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
