package api

import (
	"encoding/json" // Audit payloads
	"errors"
	"net/http" // HTTP status codes
	"time"     // Time durations

	"cryptovault/internal/domain" // Importing domain models
	"cryptovault/internal/events"
	"cryptovault/internal/jobs"
	"cryptovault/internal/middleware"
	"cryptovault/internal/storage"
	"cryptovault/internal/utils" // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/datatypes"
	"gorm.io/gorm" // GORM ORM library
)

// Cache key prefix of the admin user list
const adminUsersCachePrefix = "admin:users:"

// AdminListDatasetsHandler returns every dataset with moderation totals
func AdminListDatasetsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var all []domain.Dataset
		if err := db.Preload("Seller").Order("created_at desc").Find(&all).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch datasets"})
			return
		}
		fraudulent := 0
		for _, d := range all {
			if d.IsFraudulent {
				fraudulent++
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"datasets":   all,
			"total":      len(all),
			"fraudulent": fraudulent,
		})
	}
}

// FlagRequest carries the moderator's reason
type FlagRequest struct {
	Reason string `json:"reason" binding:"required"` // Shown to the seller
}

// FlagDatasetHandler marks a dataset fraudulent and audits it in one transaction
func FlagDatasetHandler(db *gorm.DB, rdb *redis.Client, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, _ := middleware.CurrentUser(c) // Loaded by AdminOnlyMiddleware
		id, ok := pathID(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
			return
		}
		var req FlagRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Reason is required"})
			return
		}
		var ds domain.Dataset
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&ds, "id = ?", id).Error; err != nil {
				return err
			}
			changes, err := json.Marshal(gin.H{
				"isFraudulent": gin.H{"from": ds.IsFraudulent, "to": true},
				"fraudReason":  gin.H{"from": ds.FraudReason, "to": req.Reason},
			})
			if err != nil {
				return err
			}
			if err := tx.Model(&ds).Updates(map[string]any{
				"is_fraudulent": true,
				"fraud_reason":  req.Reason,
			}).Error; err != nil {
				return err
			}
			ds.IsFraudulent, ds.FraudReason = true, req.Reason
			return tx.Create(&domain.AuditLog{
				AdminID:    &admin.ID,
				Action:     domain.AuditFlagFraudulent,
				EntityType: domain.EntityDataset,
				EntityID:   ds.ID.String(),
				Changes:    datatypes.JSON(changes),
				Reason:     req.Reason,
			}).Error
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"dataset_id": id,
				"admin_id":   admin.ID,
				"error":      err.Error(),
			}).Error("Flag failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to flag dataset"})
			return
		}
		invalidateListings(c.Request.Context(), rdb)
		events.Emit(c.Request.Context(), pub, events.DatasetFlagged, gin.H{
			"datasetId": ds.ID,
			"sellerId":  ds.SellerID,
			"reason":    req.Reason,
			"adminId":   admin.ID,
		})
		logrus.WithFields(logrus.Fields{
			"dataset_id": ds.ID,
			"admin_id":   admin.ID,
			"reason":     req.Reason,
		}).Info("Dataset flagged as fraudulent")
		c.JSON(http.StatusOK, gin.H{"success": true, "dataset": ds})
	}
}

// AdminDeleteDatasetHandler deletes any dataset with its purchases and audits
// how many purchases were removed
func AdminDeleteDatasetHandler(db *gorm.DB, rdb *redis.Client, store storage.BlobStore, pub events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, _ := middleware.CurrentUser(c)
		id, ok := pathID(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
			return
		}
		var ds domain.Dataset
		var removedTxs int64
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&ds, "id = ?", id).Error; err != nil {
				return err
			}
			var err error
			if removedTxs, err = deleteDatasetRows(tx, ds.ID); err != nil {
				return err
			}
			changes, err := json.Marshal(gin.H{"deletedDataset": gin.H{
				"title":            ds.Title,
				"sellerId":         ds.SellerID,
				"isFraudulent":     ds.IsFraudulent,
				"transactionCount": removedTxs,
			}})
			if err != nil {
				return err
			}
			return tx.Create(&domain.AuditLog{
				AdminID:    &admin.ID,
				Action:     domain.AuditDeleteDataset,
				EntityType: domain.EntityDataset,
				EntityID:   ds.ID.String(),
				Changes:    datatypes.JSON(changes),
				Reason:     "Admin deletion",
			}).Error
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"dataset_id": id,
				"admin_id":   admin.ID,
				"error":      err.Error(),
			}).Error("Admin delete failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete dataset"})
			return
		}
		releaseBlob(db, store, ds.FileHash)
		invalidateListings(c.Request.Context(), rdb)
		events.Emit(c.Request.Context(), pub, events.DatasetDeleted, gin.H{
			"datasetId":        ds.ID,
			"sellerId":         ds.SellerID,
			"deletedBy":        admin.ID,
			"transactionCount": removedTxs,
		})
		logrus.WithFields(logrus.Fields{
			"dataset_id":   ds.ID,
			"admin_id":     admin.ID,
			"transactions": removedTxs,
		}).Info("Dataset deleted by admin")
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Dataset deleted successfully"})
	}
}

// ListAuditLogsHandler pages through the audit log, optionally by action
func ListAuditLogsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := utils.ParsePage(c)
		query := db.Model(&domain.AuditLog{})
		if action := c.Query("action"); action != "" {
			query = query.Where("action = ?", action)
		}
		if entityID := c.Query("entity_id"); entityID != "" {
			query = query.Where("entity_id = ?", entityID)
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count audit logs"})
			return
		}
		var logs []domain.AuditLog
		if err := query.Order("created_at desc").Offset(p.Offset()).Limit(p.PageSize).Find(&logs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit logs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":        logs,
			"page":        p.Page,
			"page_size":   p.PageSize,
			"total":       total,
			"total_pages": p.TotalPages(total),
		})
	}
}

// UserPage is one page of the admin user list
type UserPage struct {
	Users      []domain.User `json:"users"`       // List of users
	Page       int           `json:"page"`        // Current page
	PageSize   int           `json:"page_size"`   // Page size
	Total      int64         `json:"total"`       // Total number of users
	TotalPages int           `json:"total_pages"` // Total pages
	Cached     bool          `json:"cached"`      // Indicate response is from cache
}

// ListUsersHandler returns all users, paginated
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context() // Request context reaches Redis
		p := utils.ParsePage(c)
		// Create a cache key based on pagination parameters
		cacheKey := adminUsersCachePrefix + "page=" + c.DefaultQuery("page", "1") + ":size=" + c.DefaultQuery("page_size", "20")
		// If cached data found, return it
		var cached UserPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true // Indicate response is from cache
			c.JSON(http.StatusOK, cached)
			return
		}
		var total int64 // Total user count
		if err := db.Model(&domain.User{}).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"}) // Return on error
			return
		}
		var users []domain.User // Slice to hold users
		if err := db.Order("created_at asc").Offset(p.Offset()).Limit(p.PageSize).Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"}) // Return on error
			return
		}
		// Prepare final response data
		resp := UserPage{
			Users:      users,
			Page:       p.Page,
			PageSize:   p.PageSize,
			Total:      total,
			TotalPages: p.TotalPages(total),
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second)
		c.JSON(http.StatusOK, resp) // Return the response
	}
}

// SetRoleRequest is an admin role assignment
type SetRoleRequest struct {
	Role   string `json:"role" binding:"required"` // Any role, including ADMIN
	Reason string `json:"reason"`                  // Recorded in the audit log
}

// SetUserRoleHandler changes a user's role. The change applies on the
// user's next privileged request since roles are read from the database.
func SetUserRoleHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, _ := middleware.CurrentUser(c)
		id, ok := pathID(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		var req SetRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil || !domain.IsRole(req.Role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
		if id == admin.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot change your own role"})
			return
		}
		var user domain.User
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&user, "id = ?", id).Error; err != nil {
				return err
			}
			changes, err := json.Marshal(gin.H{"role": gin.H{"from": user.Role, "to": req.Role}})
			if err != nil {
				return err
			}
			if err := tx.Model(&user).Update("role", req.Role).Error; err != nil {
				return err
			}
			user.Role = req.Role
			return tx.Create(&domain.AuditLog{
				AdminID:    &admin.ID,
				Action:     domain.AuditSetRole,
				EntityType: domain.EntityUser,
				EntityID:   user.ID.String(),
				Changes:    datatypes.JSON(changes),
				Reason:     req.Reason,
			}).Error
		})
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"user_id":  id,
				"admin_id": admin.ID,
				"error":    err.Error(),
			}).Error("Role change failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change role"})
			return
		}
		_ = utils.DeleteCachePrefix(c.Request.Context(), rdb, adminUsersCachePrefix)
		logrus.WithFields(logrus.Fields{
			"user_id":  user.ID,
			"admin_id": admin.ID,
			"role":     req.Role,
		}).Info("User role changed")
		c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
	}
}

// ReconcileHandler runs a reconciliation pass immediately
func ReconcileHandler(r *jobs.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Reconciler not configured"})
			return
		}
		report, err := r.RunOnce(c.Request.Context())
		if err != nil {
			logrus.WithField("error", err.Error()).Error("Reconciliation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Reconciliation failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
	}
}
