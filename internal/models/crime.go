package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	CrimeSubmitted     = "submitted"
	CrimeUnderReview   = "under_review"
	CrimeInvestigating = "investigating"
	CrimeResolved      = "resolved"
	CrimeRejected      = "rejected"
)

const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Crime 市民上报的案件
type Crime struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Title        string     `json:"title" gorm:"size:200" binding:"required,max=200"`
	Description  string     `json:"description" gorm:"type:text" binding:"required"`
	Category     string     `json:"category" gorm:"size:64;index" binding:"max=64"`
	Location     string     `json:"location" gorm:"size:255" binding:"max=255"`
	Latitude     float64    `json:"latitude" binding:"gte=-90,lte=90"`
	Longitude    float64    `json:"longitude" binding:"gte=-180,lte=180"`
	OccurredAt   *time.Time `json:"occurredAt"`
	Status       string     `json:"status" gorm:"size:32;index" binding:"omitempty,oneof=submitted under_review investigating resolved rejected"`
	Priority     string     `json:"priority" gorm:"size:16" binding:"omitempty,oneof=low medium high critical"`
	ReportedBy   string     `json:"reportedBy" gorm:"size:32;index"`
	AssignedTo   string     `json:"assignedTo" gorm:"size:32;index"`
	Anonymous    bool       `json:"anonymous"`
	ContactPhone string     `json:"contactPhone" gorm:"size:64" binding:"max=64"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (c *Crime) BeforeCreate(tx *gorm.DB) error {
	if c.Status == "" {
		c.Status = CrimeSubmitted
	}
	if c.Priority == "" {
		c.Priority = PriorityMedium
	}
	return nil
}

func IsCrimeStatus(s string) bool {
	switch s {
	case CrimeSubmitted, CrimeUnderReview, CrimeInvestigating, CrimeResolved, CrimeRejected:
		return true
	}
	return false
}

func GetCrime(db *gorm.DB, id uint) (*Crime, error) {
	var crime Crime
	if err := db.First(&crime, id).Error; err != nil {
		return nil, err
	}
	return &crime, nil
}
