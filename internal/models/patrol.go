package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PatrolOngoing   = "ongoing"
	PatrolCompleted = "completed"
)

// PatrolLog 巡逻记录
type PatrolLog struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	OfficerID     string     `json:"officerId" gorm:"size:32;index"`
	Area          string     `json:"area" gorm:"size:128" binding:"required,max=128"`
	Route         string     `json:"route" gorm:"size:512" binding:"max=512"`
	StartedAt     time.Time  `json:"startedAt"`
	EndedAt       *time.Time `json:"endedAt"`
	Observations  string     `json:"observations" gorm:"type:text"`
	IncidentCount int        `json:"incidentCount" binding:"gte=0"`
	Status        string     `json:"status" gorm:"size:32;index" binding:"omitempty,oneof=ongoing completed"`
	CreatedAt     time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (p *PatrolLog) BeforeCreate(tx *gorm.DB) error {
	if p.Status == "" {
		p.Status = PatrolOngoing
	}
	if p.StartedAt.IsZero() {
		p.StartedAt = time.Now()
	}
	return nil
}
