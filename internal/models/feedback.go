package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	FeedbackNew      = "new"
	FeedbackReviewed = "reviewed"
	FeedbackResolved = "resolved"
)

type Feedback struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Subject     string     `json:"subject" gorm:"size:200" binding:"required,max=200"`
	Message     string     `json:"message" gorm:"type:text" binding:"required"`
	Rating      int        `json:"rating" binding:"omitempty,min=1,max=5"`
	Category    string     `json:"category" gorm:"size:64" binding:"max=64"`
	SubmittedBy string     `json:"submittedBy" gorm:"size:32;index"`
	Status      string     `json:"status" gorm:"size:32;index" binding:"omitempty,oneof=new reviewed resolved"`
	Response    string     `json:"response" gorm:"type:text"`
	RespondedBy string     `json:"respondedBy" gorm:"size:32"`
	RespondedAt *time.Time `json:"respondedAt"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Feedback) TableName() string { return "feedback" }

func (f *Feedback) BeforeCreate(tx *gorm.DB) error {
	if f.Status == "" {
		f.Status = FeedbackNew
	}
	return nil
}
