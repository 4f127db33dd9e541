package models

import (
	"time"

	"CityWatch/pkg/errors"

	"gorm.io/gorm"
)

// Notification SSE 推送的持久化副本, 供轮询与断线补发
type Notification struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	UserID     string     `json:"userId" gorm:"size:32;index:idx_notification_user"`
	Title      string     `json:"title" gorm:"size:200"`
	Message    string     `json:"message" gorm:"size:1024"`
	Kind       string     `json:"kind" gorm:"size:64"`
	Resource   string     `json:"resource" gorm:"size:64"`
	ResourceID uint       `json:"resourceId"`
	Read       bool       `json:"read" gorm:"column:is_read;index:idx_notification_user"`
	ReadAt     *time.Time `json:"readAt"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt  time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

type NotificationQuery struct {
	SinceID    uint
	UnreadOnly bool
	Limit      int
}

func CreateNotifications(db *gorm.DB, items []*Notification) error {
	if len(items) == 0 {
		return nil
	}
	return db.Create(items).Error
}

// ListNotifications 有 SinceID 时按 ID 升序返回其后的通知, 否则返回最新的一页, 新的在前
func ListNotifications(db *gorm.DB, userID string, q NotificationQuery) ([]Notification, error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	tx := db.Where("user_id = ?", userID)
	if q.SinceID > 0 {
		tx = tx.Where("id > ?", q.SinceID).Order("id")
	} else {
		// 没有游标时取最近的一页
		tx = tx.Order("id DESC")
	}
	if q.UnreadOnly {
		tx = tx.Where("is_read = ?", false)
	}
	var out []Notification
	if err := tx.Limit(q.Limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func UnreadCount(db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.Model(&Notification{}).Where("user_id = ? AND is_read = ?", userID, false).Count(&n).Error
	return n, err
}

func MarkNotificationRead(db *gorm.DB, userID string, id uint) error {
	now := time.Now()
	res := db.Model(&Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"is_read": true, "read_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("notification not found")
	}
	return nil
}

func MarkAllNotificationsRead(db *gorm.DB, userID string) (int64, error) {
	now := time.Now()
	res := db.Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": now})
	return res.RowsAffected, res.Error
}

func DeleteNotification(db *gorm.DB, userID string, id uint) error {
	res := db.Where("id = ? AND user_id = ?", id, userID).Delete(&Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("notification not found")
	}
	return nil
}

// PurgeNotifications 删除早于 before 的已读通知
func PurgeNotifications(db *gorm.DB, before time.Time) (int64, error) {
	res := db.Where("is_read = ? AND created_at < ?", true, before).Delete(&Notification{})
	return res.RowsAffected, res.Error
}
