package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	CriminalWanted    = "wanted"
	CriminalInCustody = "in_custody"
	CriminalReleased  = "released"
)

type Criminal struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	FullName          string     `json:"fullName" gorm:"size:128;index" binding:"required,max=128"`
	Alias             string     `json:"alias" gorm:"size:128" binding:"max=128"`
	DateOfBirth       *time.Time `json:"dateOfBirth"`
	Gender            string     `json:"gender" gorm:"size:16" binding:"max=16"`
	NationalID        string     `json:"nationalId" gorm:"size:64;index" binding:"max=64"`
	Address           string     `json:"address" gorm:"size:255" binding:"max=255"`
	Offenses          string     `json:"offenses" gorm:"type:text"`
	DangerLevel       string     `json:"dangerLevel" gorm:"size:16" binding:"omitempty,oneof=low medium high"`
	Status            string     `json:"status" gorm:"size:32;index" binding:"omitempty,oneof=wanted in_custody released"`
	LastKnownLocation string     `json:"lastKnownLocation" gorm:"size:255" binding:"max=255"`
	PhotoURL          string     `json:"photoUrl" gorm:"size:512" binding:"omitempty,url"`
	CreatedBy         string     `json:"createdBy" gorm:"size:32"`
	CreatedAt         time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (c *Criminal) BeforeCreate(tx *gorm.DB) error {
	if c.Status == "" {
		c.Status = CriminalWanted
	}
	if c.DangerLevel == "" {
		c.DangerLevel = PriorityLow
	}
	return nil
}
