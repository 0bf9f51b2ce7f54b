package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Contract states
const (
	ContractDeployed = "DEPLOYED"
	ContractFailed   = "FAILED"
)

// SmartContract Model, one row per (user, status)
type SmartContract struct {
	ID                 uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	UserID             uuid.UUID      `gorm:"type:char(36);not null;uniqueIndex:idx_contract_user_status" json:"userId"`
	User               *User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ContractAddress    *string        `gorm:"type:varchar(66);uniqueIndex" json:"contractAddress"`
	ContractName       string         `gorm:"type:varchar(255);not null" json:"contractName"`
	ContractType       string         `gorm:"type:varchar(32);not null;default:STANDARD" json:"contractType"`
	Status             string         `gorm:"type:varchar(16);not null;default:FAILED;uniqueIndex:idx_contract_user_status" json:"status"`
	TxHash             string         `gorm:"type:varchar(66)" json:"txHash"`
	DeploymentMetadata datatypes.JSON `json:"deploymentMetadata"`
	CreatedAt          time.Time      `json:"createdAt"`
}

// BeforeCreate assigns a random UUID when none is set
func (s *SmartContract) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
