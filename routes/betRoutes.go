package routes

import (
	"github.com/gin-gonic/gin"

	"wingo-engine/controllers"
)

func BetRoutes(r *gin.Engine, bc *controllers.BetController) {
	r.POST("/api/bets", bc.PlaceBetHandler)
	r.GET("/api/accounts/:accountId/wagers", bc.GetWagersHandler)
}
