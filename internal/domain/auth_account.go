package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Identity providers
const (
	ProviderGoogle    = "GOOGLE"
	ProviderWalletSui = "WALLET_SUI"
)

// AuthAccount links a User to an external identity provider or wallet.
// At most one row exists per (user, provider).
type AuthAccount struct {
	ID                uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	UserID            uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_auth_user_provider" json:"userId"`
	User              *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Provider          string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_auth_user_provider" json:"provider"`
	ProviderAccountID string    `gorm:"type:varchar(255);not null" json:"providerAccountId"`
	Email             string    `gorm:"type:varchar(255)" json:"email"`
	Name              string    `gorm:"type:varchar(255)" json:"name"`
	CreatedAt         time.Time `json:"createdAt"`
}

// BeforeCreate assigns a random UUID when none is set
func (a *AuthAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
