package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User roles
const (
	RoleBuyer  = "BUYER"
	RoleSeller = "SELLER"
	RoleBoth   = "BOTH"
	RoleAdmin  = "ADMIN"
)

// KYC states
const (
	KYCPending  = "PENDING"
	KYCVerified = "VERIFIED"
	KYCRejected = "REJECTED"
)

// User Model
type User struct {
	ID              uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`                         // Primary key
	Email           string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`        // Unique email, identity anchor
	Name            string    `gorm:"type:varchar(255);not null" json:"name"`                     // Display name
	WalletAddress   *string   `gorm:"type:varchar(66);uniqueIndex" json:"walletAddress"`          // Linked wallet, nullable
	AvatarURL       string    `gorm:"type:varchar(512)" json:"avatarUrl"`                         // Avatar from the identity provider
	Bio             string    `gorm:"type:text" json:"bio"`                                       // Free-form profile text
	Role            string    `gorm:"type:varchar(16);not null;default:BUYER" json:"role"`        // BUYER, SELLER, BOTH or ADMIN
	KYCStatus       string    `gorm:"type:varchar(16);not null;default:PENDING" json:"kycStatus"` // Not enforced by any flow
	ReputationScore int       `gorm:"not null;default:0" json:"reputationScore"`
	IsActive        bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// BeforeCreate assigns a random UUID when none is set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// CanSell reports whether the role may list datasets
func (u *User) CanSell() bool {
	return u.Role != RoleBuyer && u.Role != ""
}

// IsSelfAssignableRole reports whether a user may pick this role in their own profile
func IsSelfAssignableRole(role string) bool {
	switch role {
	case RoleBuyer, RoleSeller, RoleBoth:
		return true
	}
	return false
}

// IsRole reports whether role is one of the known roles
func IsRole(role string) bool {
	return IsSelfAssignableRole(role) || role == RoleAdmin
}
