package api

import (
	"context"
	"errors"
	"net/http" // HTTP status codes
	"time"     // Time durations

	"cryptovault/internal/chain"
	"cryptovault/internal/domain" // Importing domain models
	"cryptovault/internal/events"
	"cryptovault/internal/proof"
	"cryptovault/internal/utils" // Utility functions

	"github.com/gin-gonic/gin" // Gin web framework
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// PurchaseRequest represents a purchase request
type PurchaseRequest struct {
	DatasetID string `json:"datasetId" binding:"required"` // Dataset to buy
}

// PurchaseHandler buys a dataset for the caller. The purchase record and the
// counter increment commit together.
func PurchaseHandler(db *gorm.DB, rdb *redis.Client, chainClient chain.Client, pub events.Publisher, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		buyerID, ok := callerID(c)
		if !ok {
			return
		}
		var req PurchaseRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		datasetID, err := uuid.Parse(req.DatasetID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid dataset id"})
			return
		}
		var buyer domain.User
		if err := db.First(&buyer, "id = ?", buyerID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		var ds domain.Dataset
		if err := db.First(&ds, "id = ?", datasetID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
			return
		}
		// Prevent buying from yourself
		if ds.SellerID == buyer.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot purchase your own dataset"})
			return
		}
		if !ds.Purchasable() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Dataset is not available for purchase"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		txHash, err := chainClient.SubmitPurchase(ctx, buyer, ds, ds.Price)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"buyer_id":   buyer.ID,
				"dataset_id": ds.ID,
				"error":      err.Error(),
			}).Error("Chain purchase failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction failed"})
			return
		}

		t := domain.Transaction{
			BuyerID:       buyer.ID,
			SellerID:      ds.SellerID,
			DatasetID:     ds.ID,
			Amount:        ds.Price,
			TxHash:        txHash,
			Status:        domain.TxCompleted,
			DecryptionKey: proof.DecryptionKey(time.Now()),
		}
		// Atomic purchase
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&t).Error; err != nil {
				return err // Return error to rollback
			}
			res := tx.Model(&domain.Dataset{}).Where("id = ?", ds.ID).
				UpdateColumn("purchase_count", gorm.Expr("purchase_count + ?", 1))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound // Deleted meanwhile
			}
			return nil // Commit transaction
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrForeignKeyViolated) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"buyer_id":   buyer.ID,
				"dataset_id": ds.ID,
				"amount":     ds.Price.String(),
				"error":      err.Error(),
			}).Error("Purchase failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Transaction failed"})
			return
		}

		invalidateListings(c.Request.Context(), rdb)
		events.Emit(c.Request.Context(), pub, events.PurchaseCompleted, gin.H{
			"transactionId": t.ID,
			"datasetId":     ds.ID,
			"buyerId":       buyer.ID,
			"sellerId":      ds.SellerID,
			"amount":        t.Amount,
			"txHash":        t.TxHash,
		})
		logrus.WithFields(logrus.Fields{
			"buyer_id":   buyer.ID,
			"seller_id":  ds.SellerID,
			"dataset_id": ds.ID,
			"amount":     t.Amount.String(),
			"tx_hash":    t.TxHash,
		}).Info("Purchase transaction")
		c.JSON(http.StatusOK, gin.H{"success": true, "transaction": t})
	}
}

// ListTransactionsHandler pages through the caller's purchases (role=buyer)
// or sales (role=seller), newest first
func ListTransactionsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		column := "buyer_id"
		switch c.DefaultQuery("role", "buyer") {
		case "buyer":
		case "seller":
			column = "seller_id"
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be buyer or seller"})
			return
		}
		p := utils.ParsePage(c)
		query := db.Model(&domain.Transaction{}).Where(column+" = ?", userID)
		var total int64 // Total transaction count
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		var txs []domain.Transaction // Slice to hold transactions
		if err := query.Preload("Dataset").Order("created_at desc").
			Offset(p.Offset()).Limit(p.PageSize).Find(&txs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		if column == "seller_id" {
			for i := range txs {
				txs[i].DecryptionKey = "" // Keys are for buyers only
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"data":        txs,
			"page":        p.Page,
			"page_size":   p.PageSize,
			"total":       total,
			"total_pages": p.TotalPages(total),
		})
	}
}
