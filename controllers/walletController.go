package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wingo-engine/engine"
	"wingo-engine/models"
	"wingo-engine/store"
)

// WalletController exposes balances and ledger history. Wallets are only
// ever changed through the ledger, so there is no write endpoint here.
type WalletController struct {
	Ledger *engine.WalletLedger
	Store  store.Store
}

func NewWalletController(ledger *engine.WalletLedger, st store.Store) *WalletController {
	return &WalletController{Ledger: ledger, Store: st}
}

// GetAccountHandler returns the balance and totals of an account. Accounts
// that were never used report their opening balance.
func (wc *WalletController) GetAccountHandler(c *gin.Context) {
	accountID := c.Param("accountId")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	account, err := wc.Store.GetAccount(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		balance, err := wc.Ledger.Balance(ctx, accountID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		account = models.WalletAccount{AccountID: accountID, Balance: balance}
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

// GetLedgerHandler returns the latest ledger entries of an account.
func (wc *WalletController) GetLedgerHandler(c *gin.Context) {
	accountID := c.Param("accountId")
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	entries, err := wc.Store.ListLedger(ctx, accountID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"accountId": accountID, "entries": entries})
}
