package api

import (
	"errors"
	"net/http" // HTTP status codes
	"time"     // Time durations

	"cryptovault/internal/chain"
	"cryptovault/internal/identity" // Wallet linking

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// WalletRequest carries a Sui wallet address
type WalletRequest struct {
	WalletAddress string `json:"walletAddress"` // 0x-prefixed hex
}

// LinkWalletHandler attaches a wallet address to the caller
func LinkWalletHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		var req WalletRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.WalletAddress == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Wallet address is required"})
			return
		}
		user, err := identity.LinkWallet(c.Request.Context(), db, userID, req.WalletAddress)
		switch {
		case errors.Is(err, identity.ErrInvalidWallet):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
			return
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		case errors.Is(err, identity.ErrWalletTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Wallet address is already linked to another account"})
			return
		case err != nil:
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"error":   err.Error(),
			}).Error("Wallet link failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to link wallet"})
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"wallet":  *user.WalletAddress,
		}).Info("Wallet linked")
		c.JSON(http.StatusOK, gin.H{"success": true, "walletAddress": *user.WalletAddress})
	}
}

// ConnectWalletHandler acknowledges a wallet connection. Nothing is read
// from the chain; the balance is a placeholder.
func ConnectWalletHandler(chainClient chain.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req WalletRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.WalletAddress == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Wallet address is required"})
			return
		}
		address, err := identity.NormalizeWallet(req.WalletAddress)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"address":   address,
			"network":   "sui-" + chainClient.Network(),
			"balance":   "0",
			"connected": true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}})
	}
}
