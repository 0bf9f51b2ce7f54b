package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction states
const (
	TxPending   = "PENDING"
	TxCompleted = "COMPLETED"
	TxFailed    = "FAILED"
)

// Transaction Model, a purchase record
type Transaction struct {
	ID            uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`                       // Primary key
	BuyerID       uuid.UUID       `gorm:"type:char(36);not null;index" json:"buyerId"`              // Purchasing user
	Buyer         *User           `gorm:"foreignKey:BuyerID;constraint:OnDelete:CASCADE" json:"-"`  // Foreign key constraint
	SellerID      uuid.UUID       `gorm:"type:char(36);not null;index" json:"sellerId"`             // Selling user
	Seller        *User           `gorm:"foreignKey:SellerID;constraint:OnDelete:CASCADE" json:"-"` // Foreign key constraint
	DatasetID     uuid.UUID       `gorm:"type:char(36);not null;index" json:"datasetId"`            // Purchased dataset
	Dataset       *Dataset        `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE" json:"dataset,omitempty"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"amount"`               // Price paid
	TxHash        string          `gorm:"type:varchar(66);uniqueIndex" json:"txHash"`              // Chain transaction hash
	Status        string          `gorm:"type:varchar(16);not null;default:PENDING" json:"status"` // PENDING, COMPLETED, FAILED
	DecryptionKey string          `gorm:"type:varchar(128)" json:"decryptionKey"`                  // Placeholder key
	CreatedAt     time.Time       `json:"createdAt"`
}

// BeforeCreate assigns a random UUID when none is set
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
