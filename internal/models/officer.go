package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	OfficerOnDuty    = "on_duty"
	OfficerOffDuty   = "off_duty"
	OfficerOnLeave   = "on_leave"
	OfficerSuspended = "suspended"
)

type Officer struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	UserID      string     `json:"userId" gorm:"size:32;index"`
	BadgeNumber string     `json:"badgeNumber" gorm:"size:64;uniqueIndex" binding:"required,max=64"`
	FullName    string     `json:"fullName" gorm:"size:128" binding:"required,max=128"`
	Rank        string     `json:"rank" gorm:"size:64" binding:"max=64"`
	Unit        string     `json:"unit" gorm:"size:64" binding:"max=64"`
	Phone       string     `json:"phone" gorm:"size:64" binding:"max=64"`
	Status      string     `json:"status" gorm:"size:32;index" binding:"omitempty,oneof=on_duty off_duty on_leave suspended"`
	JoinedAt    *time.Time `json:"joinedAt"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (o *Officer) BeforeCreate(tx *gorm.DB) error {
	if o.Status == "" {
		o.Status = OfficerOffDuty
	}
	return nil
}

func BadgeTaken(db *gorm.DB, badge string, excludeID uint) (bool, error) {
	var n int64
	q := db.Model(&Officer{}).Where("badge_number = ?", badge)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
