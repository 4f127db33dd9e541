package models

import (
	"CityWatch/pkg/middleware"

	"gorm.io/gorm"
)

// Migrate 自动建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&PendingAccount{},
		&Crime{},
		&Incident{},
		&PatrolLog{},
		&Criminal{},
		&Asset{},
		&Feedback{},
		&Officer{},
		&StaffSchedule{},
		&Notification{},
		&Attachment{},
		&middleware.OperationLog{},
	)
}
