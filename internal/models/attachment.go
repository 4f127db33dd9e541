package models

import (
	"time"

	"CityWatch/pkg/errors"

	"gorm.io/gorm"
)

// Attachment 案件或事件的证据文件
type Attachment struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Resource    string    `json:"resource" gorm:"size:32;index:idx_attachment_owner"`
	ResourceID  uint      `json:"resourceId" gorm:"index:idx_attachment_owner"`
	FileName    string    `json:"fileName" gorm:"size:255"`
	ContentType string    `json:"contentType" gorm:"size:128"`
	Size        int64     `json:"size"`
	StorageKey  string    `json:"-" gorm:"size:255"`
	UploadedBy  string    `json:"uploadedBy" gorm:"size:32"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

func ListAttachments(db *gorm.DB, resource string, resourceID uint) ([]Attachment, error) {
	var out []Attachment
	err := db.Where("resource = ? AND resource_id = ?", resource, resourceID).Order("id").Find(&out).Error
	return out, err
}

func GetAttachment(db *gorm.DB, id uint) (*Attachment, error) {
	var a Attachment
	if err := db.First(&a, id).Error; err != nil {
		return nil, errors.FromDB(err, "attachment")
	}
	return &a, nil
}
