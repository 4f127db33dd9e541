package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	AssetAvailable   = "available"
	AssetInUse       = "in_use"
	AssetMaintenance = "maintenance"
	AssetRetired     = "retired"
)

// Asset 装备与车辆
type Asset struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Name         string     `json:"name" gorm:"size:128" binding:"required,max=128"`
	Category     string     `json:"category" gorm:"size:64;index" binding:"max=64"`
	SerialNumber string     `json:"serialNumber" gorm:"size:128;uniqueIndex" binding:"required,max=128"`
	Status       string     `json:"status" gorm:"size:32;index" binding:"omitempty,oneof=available in_use maintenance retired"`
	AssignedTo   string     `json:"assignedTo" gorm:"size:32;index"`
	Location     string     `json:"location" gorm:"size:255" binding:"max=255"`
	PurchasedAt  *time.Time `json:"purchasedAt"`
	Notes        string     `json:"notes" gorm:"type:text"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.Status == "" {
		a.Status = AssetAvailable
	}
	return nil
}
