package api

import (
	"errors"
	"fmt"
	"net/http" // HTTP status codes
	"strings"
	"time" // Time durations

	"cryptovault/internal/domain" // Importing domain models
	"cryptovault/internal/events"
	"cryptovault/internal/storage"
	"cryptovault/internal/utils" // Utility functions

	"github.com/gin-gonic/gin" // Gin web framework
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/datatypes"
	"gorm.io/gorm" // GORM ORM library
)

// DatasetPage is one page of the public listing
type DatasetPage struct {
	Data       []domain.Dataset `json:"data"`        // Listings on this page
	Count      int              `json:"count"`       // Listings on this page
	Page       int              `json:"page"`        // Current page
	PageSize   int              `json:"page_size"`   // Page size
	Total      int64            `json:"total"`       // Total matching listings
	TotalPages int              `json:"total_pages"` // Total pages
	Cached     bool             `json:"cached"`      // Served from cache
}

// ListDatasetsHandler returns active, non-fraudulent listings with optional filters
func ListDatasetsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		p := utils.ParsePage(c)
		category := c.Query("category")
		if category == "All" {
			category = "" // "All" means no filter
		}
		minPrice, maxPrice := c.Query("minPrice"), c.Query("maxPrice")
		search := strings.TrimSpace(c.Query("q"))

		// Create a cache key based on filters and pagination
		cacheKey := fmt.Sprintf("%scategory=%s:min=%s:max=%s:q=%s:page=%d:size=%d",
			listingCachePrefix, category, minPrice, maxPrice, search, p.Page, p.PageSize)
		var cached DatasetPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}

		query := db.Model(&domain.Dataset{}).
			Where("status = ? AND is_fraudulent = ?", domain.DatasetActive, false)
		if category != "" {
			query = query.Where("category = ?", category)
		}
		if minPrice != "" {
			v, err := decimal.NewFromString(minPrice)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid minPrice"})
				return
			}
			query = query.Where("price >= ?", v)
		}
		if maxPrice != "" {
			v, err := decimal.NewFromString(maxPrice)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid maxPrice"})
				return
			}
			query = query.Where("price <= ?", v)
		}
		if search != "" {
			query = query.Where("title LIKE ?", "%"+search+"%")
		}

		var total int64
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count datasets"})
			return
		}
		var list []domain.Dataset
		if err := query.Preload("Seller", sellerPreview).
			Order("created_at desc").
			Offset(p.Offset()).Limit(p.PageSize).
			Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch datasets"})
			return
		}
		resp := DatasetPage{
			Data:       list,
			Count:      len(list),
			Page:       p.Page,
			PageSize:   p.PageSize,
			Total:      total,
			TotalPages: p.TotalPages(total),
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second)
		c.JSON(http.StatusOK, resp)
	}
}

// GetDatasetHandler returns one dataset and counts the view
func GetDatasetHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
			return
		}
		res := db.Model(&domain.Dataset{}).Where("id = ?", id).
			UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dataset"})
			return
		}
		var ds domain.Dataset
		if res.RowsAffected == 0 || db.Preload("Seller", sellerPreview).First(&ds, "id = ?", id).Error != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": ds})
	}
}

// CreateDatasetRequest describes a listing without content
type CreateDatasetRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Tags        []string         `json:"tags"`
}

// CreateDatasetHandler creates a draft listing; content is attached by upload
func CreateDatasetHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		var req CreateDatasetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		req.Category = strings.TrimSpace(req.Category)
		if req.Title == "" || req.Category == "" || req.Price == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			return
		}
		if req.Price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price"})
			return
		}
		ds := domain.Dataset{
			SellerID:    userID,
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Price:       *req.Price,
			Tags:        datatypes.JSONSlice[string](cleanTags(req.Tags)),
			Status:      domain.DatasetDraft,
		}
		if err := db.Create(&ds).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusConflict, gin.H{"error": "You already have a dataset with this title"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"error":   err.Error(),
			}).Error("Dataset creation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create dataset"})
			return
		}
		invalidateListings(c.Request.Context(), rdb)
		c.JSON(http.StatusCreated, gin.H{"data": ds})
	}
}

// UpdateDatasetRequest carries the fields an owner may change; nil means unchanged
type UpdateDatasetRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Tags        *[]string        `json:"tags"`
	Status      *string          `json:"status"`
}

// UpdateDatasetHandler edits the caller's own listing
func UpdateDatasetHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		id, ok := pathID(c)
		var ds domain.Dataset
		if !ok || db.Where("id = ? AND seller_id = ?", id, userID).First(&ds).Error != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found or you don't have permission"})
			return
		}
		var req UpdateDatasetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		updates := map[string]any{}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Title cannot be empty"})
				return
			}
			updates["title"] = title
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Category != nil {
			updates["category"] = strings.TrimSpace(*req.Category)
		}
		if req.Price != nil {
			if req.Price.IsNegative() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price"})
				return
			}
			updates["price"] = *req.Price
		}
		if req.Tags != nil {
			updates["tags"] = datatypes.JSONSlice[string](cleanTags(*req.Tags))
		}
		if req.Status != nil {
			switch *req.Status {
			case domain.DatasetDraft:
			case domain.DatasetActive:
				if !ds.HasContent() {
					c.JSON(http.StatusBadRequest, gin.H{"error": "Upload content before publishing"})
					return
				}
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
				return
			}
			updates["status"] = *req.Status
		}
		if len(updates) == 0 {
			c.JSON(http.StatusOK, gin.H{"data": ds})
			return
		}

		if err := db.Model(&ds).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusConflict, gin.H{"error": "You already have a dataset with this title"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"dataset_id": ds.ID,
				"error":      err.Error(),
			}).Error("Dataset update failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update dataset"})
			return
		}
		if err := db.First(&ds, "id = ?", ds.ID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update dataset"})
			return
		}
		invalidateListings(c.Request.Context(), rdb)
		c.JSON(http.StatusOK, gin.H{"data": ds})
	}
}

// DeleteDatasetHandler deletes the caller's own listing together with its purchases
func DeleteDatasetHandler(db *gorm.DB, rdb *redis.Client, store storage.BlobStore, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		id, ok := pathID(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found or you don't have permission"})
			return
		}
		var ds domain.Dataset
		var removedTxs int64
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("id = ? AND seller_id = ?", id, userID).First(&ds).Error; err != nil {
				return err
			}
			var err error
			removedTxs, err = deleteDatasetRows(tx, ds.ID)
			return err
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found or you don't have permission"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"dataset_id": id,
				"user_id":    userID,
				"error":      err.Error(),
			}).Error("Dataset deletion failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete dataset"})
			return
		}
		releaseBlob(db, store, ds.FileHash)
		invalidateListings(c.Request.Context(), rdb)
		events.Emit(c.Request.Context(), pub, events.DatasetDeleted, gin.H{
			"datasetId":        ds.ID,
			"sellerId":         ds.SellerID,
			"deletedBy":        userID,
			"transactionCount": removedTxs,
		})
		logrus.WithFields(logrus.Fields{
			"dataset_id":   ds.ID,
			"user_id":      userID,
			"transactions": removedTxs,
		}).Info("Dataset deleted by owner")
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Dataset deleted successfully"})
	}
}

// deleteDatasetRows removes a dataset and the purchases referencing it,
// returning how many purchases went with it. Must run inside a transaction.
func deleteDatasetRows(tx *gorm.DB, datasetID uuid.UUID) (int64, error) {
	res := tx.Where("dataset_id = ?", datasetID).Delete(&domain.Transaction{})
	if res.Error != nil {
		return 0, res.Error
	}
	if err := tx.Where("id = ?", datasetID).Delete(&domain.Dataset{}).Error; err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// MyDatasetsHandler lists the caller's listings in every status
func MyDatasetsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		var list []domain.Dataset
		if err := db.Where("seller_id = ?", userID).Order("created_at desc").Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch datasets"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

// DownloadDatasetHandler streams content to the owner or a buyer
func DownloadDatasetHandler(db *gorm.DB, store storage.BlobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := callerID(c)
		if !ok {
			return
		}
		id, ok := pathID(c)
		var ds domain.Dataset
		if !ok || db.First(&ds, "id = ?", id).Error != nil || !ds.HasContent() {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
			return
		}
		if ds.SellerID != userID {
			var purchases int64
			if err := db.Model(&domain.Transaction{}).
				Where("buyer_id = ? AND dataset_id = ? AND status = ?", userID, ds.ID, domain.TxCompleted).
				Count(&purchases).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dataset"})
				return
			}
			if purchases == 0 {
				c.JSON(http.StatusForbidden, gin.H{"error": "Purchase required"})
				return
			}
		}
		rc, err := store.Open(ds.FileHash)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Dataset content not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"dataset_id": ds.ID,
				"error":      err.Error(),
			}).Error("Blob open failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dataset"})
			return
		}
		defer rc.Close()
		c.DataFromReader(http.StatusOK, ds.FileSize, "application/octet-stream", rc, map[string]string{
			"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, ds.ID),
		})
	}
}

// cleanTags trims tags and drops empty ones
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
