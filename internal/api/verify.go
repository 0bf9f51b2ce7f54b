package api

import (
	"net/http"
	"time"

	"cryptovault/internal/proof"

	"github.com/gin-gonic/gin"
)

// EncryptRequest names the dataset to "encrypt"
type EncryptRequest struct {
	DatasetID     string `json:"datasetId"`
	EncryptionKey string `json:"encryptionKey"`
}

// EncryptHandler returns a fabricated encryption receipt
func EncryptHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EncryptRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.DatasetID == "" || req.EncryptionKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": proof.Encrypt(req.DatasetID, time.Now())})
	}
}

// ZKVerifyRequest names the dataset whose proof is "verified"
type ZKVerifyRequest struct {
	DatasetID string `json:"datasetId"`
}

// ZKVerifyHandler always reports a verified proof
func ZKVerifyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ZKVerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.DatasetID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Dataset ID required"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": proof.Verify(req.DatasetID, time.Now())})
	}
}
