package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"cryptovault/internal/domain"
	"cryptovault/internal/events"
	"cryptovault/internal/middleware"
	"cryptovault/internal/proof"
	"cryptovault/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Room for the non-file multipart fields
const formOverhead = 1 << 20

// UploadDatasetHandler stores the uploaded file by content hash and lists it.
// With a datasetId field the content is attached to one of the caller's
// drafts instead. A failed write removes the blob again unless another
// dataset shares it.
func UploadDatasetHandler(db *gorm.DB, rdb *redis.Client, store storage.BlobStore, pub events.Publisher, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		seller, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "Sellers only"})
			return
		}
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+formOverhead)
		}
		header, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			return
		}

		// Attaching to a draft needs no listing fields
		var draft *domain.Dataset
		var price decimal.Decimal
		title := strings.TrimSpace(c.PostForm("title"))
		if field := strings.TrimSpace(c.PostForm("datasetId")); field != "" {
			draft = loadDraft(c, db, seller.ID, field)
			if draft == nil {
				return
			}
		} else {
			priceField := strings.TrimSpace(c.PostForm("price"))
			if title == "" || priceField == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
				return
			}
			price, err = decimal.NewFromString(priceField)
			if err != nil || price.IsNegative() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price"})
				return
			}
		}
		if maxBytes > 0 && header.Size > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}

		f, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file"})
			return
		}
		defer f.Close()
		blob, err := store.Put(c.Request.Context(), f)
		if err != nil {
			if errors.Is(err, storage.ErrTooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"user_id": seller.ID,
				"error":   err.Error(),
			}).Error("Blob write failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
			return
		}
		proofHash := proof.PlaceholderHash(blob.Hash, time.Now())

		status := http.StatusCreated
		var ds domain.Dataset
		if draft != nil {
			status = http.StatusOK
			if ds, ok = attachContent(c, db, store, *draft, blob, proofHash); !ok {
				return
			}
		} else {
			category := strings.TrimSpace(c.PostForm("category"))
			if category == "" {
				category = "Other"
			}
			ds = domain.Dataset{
				SellerID:    seller.ID,
				Title:       title,
				Description: c.PostForm("description"),
				FileHash:    blob.Hash,
				FileSize:    blob.Size,
				StorageKey:  blob.Key,
				Price:       price,
				ZKProofHash: proofHash,
				Category:    category,
				Tags:        datatypes.JSONSlice[string](cleanTags(strings.Split(c.PostForm("tags"), ","))),
				Status:      domain.DatasetActive,
			}
			if err := db.Create(&ds).Error; err != nil {
				releaseBlob(db, store, blob.Hash)
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					c.JSON(http.StatusConflict, gin.H{"error": "You already have a dataset with this title"})
					return
				}
				logrus.WithFields(logrus.Fields{
					"user_id":   seller.ID,
					"file_hash": blob.Hash,
					"error":     err.Error(),
				}).Error("Dataset insert failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create dataset"})
				return
			}
		}

		invalidateListings(c.Request.Context(), rdb)
		events.Emit(c.Request.Context(), pub, events.DatasetUploaded, gin.H{
			"datasetId": ds.ID,
			"sellerId":  ds.SellerID,
			"fileHash":  ds.FileHash,
			"fileSize":  ds.FileSize,
			"price":     ds.Price,
		})
		logrus.WithFields(logrus.Fields{
			"dataset_id": ds.ID,
			"user_id":    seller.ID,
			"file_hash":  ds.FileHash,
			"file_size":  ds.FileSize,
			"draft":      draft != nil,
		}).Info("Dataset uploaded")
		c.JSON(status, gin.H{"success": true, "dataset": ds})
	}
}

// loadDraft returns the caller's draft named by field or answers 400/404
func loadDraft(c *gin.Context, db *gorm.DB, sellerID uuid.UUID, field string) *domain.Dataset {
	id, err := uuid.Parse(field)
	var ds domain.Dataset
	if err != nil || db.Where("id = ? AND seller_id = ?", id, sellerID).First(&ds).Error != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found or you don't have permission"})
		return nil
	}
	if ds.Status != domain.DatasetDraft {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content can only be attached to a draft"})
		return nil
	}
	return &ds
}

// attachContent points a draft at blob. The status guard makes a draft
// published meanwhile fail the update rather than silently change content.
func attachContent(c *gin.Context, db *gorm.DB, store storage.BlobStore, draft domain.Dataset, blob storage.Blob, proofHash string) (domain.Dataset, bool) {
	res := db.Model(&domain.Dataset{}).
		Where("id = ? AND seller_id = ? AND status = ?", draft.ID, draft.SellerID, domain.DatasetDraft).
		Updates(map[string]any{
			"file_hash":     blob.Hash,
			"file_size":     blob.Size,
			"storage_key":   blob.Key,
			"zk_proof_hash": proofHash,
		})
	if res.Error != nil || res.RowsAffected == 0 {
		releaseBlob(db, store, blob.Hash)
		if res.Error == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found or you don't have permission"})
			return domain.Dataset{}, false
		}
		logrus.WithFields(logrus.Fields{
			"dataset_id": draft.ID,
			"file_hash":  blob.Hash,
			"error":      res.Error.Error(),
		}).Error("Attaching content failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return domain.Dataset{}, false
	}
	if draft.FileHash != blob.Hash {
		releaseBlob(db, store, draft.FileHash) // Replaced content
	}
	var ds domain.Dataset
	if err := db.First(&ds, "id = ?", draft.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return domain.Dataset{}, false
	}
	return ds, true
}
