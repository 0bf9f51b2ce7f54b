package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Dataset listing states
const (
	DatasetActive = "active"
	DatasetDraft  = "draft"
)

// Dataset Model, the sellable unit
type Dataset struct {
	ID            uuid.UUID                   `gorm:"type:char(36);primaryKey" json:"id"`
	SellerID      uuid.UUID                   `gorm:"type:char(36);not null;uniqueIndex:idx_dataset_seller_title" json:"sellerId"`
	Seller        *User                       `gorm:"foreignKey:SellerID;constraint:OnDelete:CASCADE" json:"seller,omitempty"`
	Title         string                      `gorm:"type:varchar(255);not null;uniqueIndex:idx_dataset_seller_title" json:"title"`
	Description   string                      `gorm:"type:text" json:"description"`
	FileHash      string                      `gorm:"type:varchar(64);not null;index" json:"fileHash"` // SHA-256 of content, empty for drafts
	FileSize      int64                       `json:"fileSize"`
	StorageKey    string                      `gorm:"type:varchar(80)" json:"storageKey"`
	Price         decimal.Decimal             `gorm:"type:decimal(18,6);not null" json:"price"`
	ZKProofHash   string                      `gorm:"type:varchar(64)" json:"zkProofHash"` // Placeholder value, proves nothing
	Category      string                      `gorm:"type:varchar(64);index" json:"category"`
	Tags          datatypes.JSONSlice[string] `json:"tags"`
	Status        string                      `gorm:"type:varchar(16);not null;default:active" json:"status"`
	Verified      bool                        `gorm:"not null;default:false" json:"verified"`
	IsFraudulent  bool                        `gorm:"not null;default:false" json:"isFraudulent"`
	FraudReason   string                      `gorm:"type:text" json:"fraudReason"`
	ViewCount     int64                       `gorm:"not null;default:0" json:"viewCount"`
	PurchaseCount int64                       `gorm:"not null;default:0" json:"purchaseCount"` // Cache of completed transactions
	CreatedAt     time.Time                   `json:"createdAt"`
	UpdatedAt     time.Time                   `json:"updatedAt"`
}

// BeforeCreate assigns a random UUID when none is set
func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// HasContent reports whether a blob has been stored for the dataset
func (d *Dataset) HasContent() bool {
	return d.FileHash != ""
}

// Purchasable reports whether buyers may purchase the dataset
func (d *Dataset) Purchasable() bool {
	return d.Status == DatasetActive && !d.IsFraudulent && d.HasContent()
}
