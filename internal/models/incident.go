package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	IncidentOpen       = "open"
	IncidentDispatched = "dispatched"
	IncidentInProgress = "in_progress"
	IncidentClosed     = "closed"
)

type Incident struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Title       string     `json:"title" gorm:"size:200" binding:"required,max=200"`
	Description string     `json:"description" gorm:"type:text"`
	Type        string     `json:"type" gorm:"size:64;index" binding:"max=64"`
	Location    string     `json:"location" gorm:"size:255" binding:"max=255"`
	Latitude    float64    `json:"latitude" binding:"gte=-90,lte=90"`
	Longitude   float64    `json:"longitude" binding:"gte=-180,lte=180"`
	Severity    string     `json:"severity" gorm:"size:16" binding:"omitempty,oneof=low medium high critical"`
	Status      string     `json:"status" gorm:"size:32;index" binding:"omitempty,oneof=open dispatched in_progress closed"`
	CrimeID     *uint      `json:"crimeId" gorm:"index"`
	ReportedBy  string     `json:"reportedBy" gorm:"size:32"`
	AssignedTo  string     `json:"assignedTo" gorm:"size:32;index"`
	OccurredAt  *time.Time `json:"occurredAt"`
	ResolvedAt  *time.Time `json:"resolvedAt"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (i *Incident) BeforeCreate(tx *gorm.DB) error {
	if i.Status == "" {
		i.Status = IncidentOpen
	}
	if i.Severity == "" {
		i.Severity = PriorityMedium
	}
	return nil
}

func IsIncidentStatus(s string) bool {
	switch s {
	case IncidentOpen, IncidentDispatched, IncidentInProgress, IncidentClosed:
		return true
	}
	return false
}
