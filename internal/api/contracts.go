package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cryptovault/internal/chain"
	"cryptovault/internal/domain"
	"cryptovault/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeployContractHandler gives the caller a marketplace contract. A user has
// at most one DEPLOYED contract; concurrent calls converge on the same row.
func DeployContractHandler(db *gorm.DB, chainClient chain.Client, pub events.Publisher, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		var user domain.User
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		var existing domain.SmartContract
		err := db.Where("user_id = ? AND status = ?", user.ID, domain.ContractDeployed).First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deploy contract"})
			return
		}
		if err == nil {
			c.JSON(http.StatusOK, gin.H{
				"success":         true,
				"contractAddress": existing.ContractAddress,
				"contract":        existing,
				"message":         "User already has a deployed contract",
			})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		dep, err := chainClient.DeployContract(ctx, user)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": user.ID,
				"error":   err.Error(),
			}).Error("Contract deployment failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deploy contract"})
			return
		}
		metadata, err := json.Marshal(dep.Metadata)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deploy contract"})
			return
		}
		contract := domain.SmartContract{
			UserID:             user.ID,
			ContractAddress:    &dep.ContractAddress,
			ContractName:       dep.ContractName,
			ContractType:       "STANDARD",
			Status:             domain.ContractDeployed,
			TxHash:             dep.TxHash,
			DeploymentMetadata: datatypes.JSON(metadata),
		}
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "status"}},
			DoNothing: true,
		}).Create(&contract)
		if res.Error != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": user.ID,
				"error":   res.Error.Error(),
			}).Error("Contract insert failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deploy contract"})
			return
		}
		inserted := res.RowsAffected == 1
		// Re-read so a losing concurrent request returns the winner's row
		var stored domain.SmartContract
		if err := db.Where("user_id = ? AND status = ?", user.ID, domain.ContractDeployed).First(&stored).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deploy contract"})
			return
		}
		if !inserted {
			c.JSON(http.StatusOK, gin.H{
				"success":         true,
				"contractAddress": stored.ContractAddress,
				"contract":        stored,
				"message":         "User already has a deployed contract",
			})
			return
		}

		events.Emit(c.Request.Context(), pub, events.ContractDeployed, gin.H{
			"userId":          user.ID,
			"contractAddress": stored.ContractAddress,
			"txHash":          stored.TxHash,
		})
		logrus.WithFields(logrus.Fields{
			"user_id":  user.ID,
			"contract": dep.ContractAddress,
			"tx_hash":  dep.TxHash,
		}).Info("Contract deployed")
		c.JSON(http.StatusOK, gin.H{
			"success":         true,
			"contractAddress": stored.ContractAddress,
			"txHash":          stored.TxHash,
			"contract":        stored,
		})
	}
}

// ListContractsHandler lists the caller's contracts
func ListContractsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		var contracts []domain.SmartContract
		if err := db.Where("user_id = ?", userID).Order("created_at desc").Find(&contracts).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch contracts"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": contracts})
	}
}
