package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// APIKey is a long-lived credential; only the bcrypt hash of the secret is stored
type APIKey struct {
	ID         uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:char(36);not null;index" json:"userId"`
	User       *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Prefix     string     `gorm:"type:varchar(32);not null;uniqueIndex" json:"prefix"`
	KeyHash    string     `gorm:"type:varchar(72);not null" json:"-"`
	LastUsedAt *time.Time `json:"lastUsedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// BeforeCreate assigns a random UUID when none is set
func (k *APIKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	return nil
}
