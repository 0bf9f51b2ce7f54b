package api

import (
	"context"
	"net/http"

	"cryptovault/internal/domain"
	"cryptovault/internal/middleware"
	"cryptovault/internal/storage"
	"cryptovault/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Cache key prefix of public dataset listings
const listingCachePrefix = "datasets:list:"

// callerID returns the authenticated user ID or answers 401
func callerID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return id, ok
}

// pathID parses the :id route parameter
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	return id, err == nil
}

// invalidateListings drops every cached public listing page
func invalidateListings(ctx context.Context, rdb *redis.Client) {
	if err := utils.DeleteCachePrefix(ctx, rdb, listingCachePrefix); err != nil {
		logrus.WithField("error", err.Error()).Warn("Failed to invalidate listing cache")
	}
}

// releaseBlob removes a blob unless some dataset still references it
func releaseBlob(db *gorm.DB, store storage.BlobStore, hash string) {
	if store == nil || hash == "" {
		return
	}
	var refs int64
	if err := db.Model(&domain.Dataset{}).Where("file_hash = ?", hash).Count(&refs).Error; err != nil || refs > 0 {
		return
	}
	if err := store.Delete(hash); err != nil {
		logrus.WithFields(logrus.Fields{
			"file_hash": hash,
			"error":     err.Error(),
		}).Warn("Failed to remove unreferenced blob")
	}
}

// sellerPreview limits the seller fields exposed on public listings
func sellerPreview(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "avatar_url", "wallet_address", "reputation_score")
}
