package routes

import (
	"github.com/gin-gonic/gin"

	"wingo-engine/controllers"
)

func WalletRoutes(r *gin.Engine, wc *controllers.WalletController) {
	r.GET("/api/accounts/:accountId", wc.GetAccountHandler)
	r.GET("/api/accounts/:accountId/ledger", wc.GetLedgerHandler)
}
