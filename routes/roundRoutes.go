package routes

import (
	"github.com/gin-gonic/gin"

	"wingo-engine/controllers"
)

func RoundRoutes(r *gin.Engine, rc *controllers.RoundController) {
	r.GET("/api/rounds", rc.GetRoundsHandler)
	r.GET("/api/rounds/:mode", rc.GetRoundHandler)
	r.GET("/api/rounds/:mode/history", rc.GetHistoryHandler)
}
