package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit actions
const (
	AuditFlagFraudulent = "FLAG_FRAUDULENT"
	AuditDeleteDataset  = "DELETE_DATASET"
	AuditSetRole        = "SET_ROLE"
)

// Audit entity types
const (
	EntityDataset = "DATASET"
	EntityUser    = "USER"
)

// AuditLog is an append-only record of an administrative action
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	AdminID    *uuid.UUID     `gorm:"type:char(36);index" json:"adminId"`
	Admin      *User          `gorm:"foreignKey:AdminID;constraint:OnDelete:SET NULL" json:"-"`
	Action     string         `gorm:"type:varchar(32);not null;index" json:"action"`
	EntityType string         `gorm:"type:varchar(32);not null" json:"entityType"`
	EntityID   string         `gorm:"type:varchar(64);not null;index" json:"entityId"`
	Changes    datatypes.JSON `json:"changes"`
	Reason     string         `gorm:"type:text" json:"reason"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// BeforeCreate assigns a random UUID when none is set
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
