package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ScheduleScheduled = "scheduled"
	ScheduleCompleted = "completed"
	ScheduleCancelled = "cancelled"
)

// StaffSchedule 排班
type StaffSchedule struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	StaffID    string     `json:"staffId" gorm:"size:32;index" binding:"required"`
	Shift      string     `json:"shift" gorm:"size:16" binding:"required,oneof=morning afternoon night"`
	StartTime  time.Time  `json:"startTime" gorm:"index" binding:"required"`
	EndTime    time.Time  `json:"endTime" binding:"required,gtfield=StartTime"`
	Location   string     `json:"location" gorm:"size:255" binding:"max=255"`
	Task       string     `json:"task" gorm:"size:512" binding:"max=512"`
	Status     string     `json:"status" gorm:"size:32;index" binding:"omitempty,oneof=scheduled completed cancelled"`
	CreatedBy  string     `json:"createdBy" gorm:"size:32"`
	RemindedAt *time.Time `json:"remindedAt"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (s *StaffSchedule) BeforeCreate(tx *gorm.DB) error {
	if s.Status == "" {
		s.Status = ScheduleScheduled
	}
	return nil
}

// UpcomingSchedules 返回某人尚未结束的排班
func UpcomingSchedules(db *gorm.DB, staffID string, now time.Time, limit int) ([]StaffSchedule, error) {
	var out []StaffSchedule
	err := db.Where("staff_id = ? AND end_time > ? AND status = ?", staffID, now, ScheduleScheduled).
		Order("start_time").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DueShiftReminders 返回即将开始且尚未提醒的排班
func DueShiftReminders(db *gorm.DB, now time.Time, within time.Duration) ([]StaffSchedule, error) {
	var out []StaffSchedule
	err := db.Where("status = ? AND reminded_at IS NULL AND start_time > ? AND start_time <= ?",
		ScheduleScheduled, now, now.Add(within)).
		Order("start_time").
		Find(&out).Error
	return out, err
}

func MarkReminded(db *gorm.DB, id uint, at time.Time) error {
	return db.Model(&StaffSchedule{}).Where("id = ?", id).UpdateColumn("reminded_at", at).Error
}
