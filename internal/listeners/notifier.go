package listeners

import (
	"strconv"

	"CityWatch/internal/models"
	"CityWatch/pkg/logger"
	"CityWatch/pkg/metrics"
	"CityWatch/pkg/sse"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const EventNotification = "notification"

// Notice 一条待发送的通知
type Notice struct {
	Title      string
	Message    string
	Kind       string
	Resource   string
	ResourceID uint
}

// Notifier 持久化通知并通过 SSE 推送给在线用户
type Notifier struct {
	db      *gorm.DB
	hub     *sse.Hub
	metrics *metrics.Metrics
}

func NewNotifier(db *gorm.DB, hub *sse.Hub, m *metrics.Metrics) *Notifier {
	return &Notifier{db: db, hub: hub, metrics: m}
}

func (n *Notifier) Hub() *sse.Hub { return n.hub }

// NotifyUsers 给指定用户发送通知, 空 ID 与重复 ID 会被忽略
func (n *Notifier) NotifyUsers(userIDs []string, notice Notice) ([]*models.Notification, error) {
	seen := map[string]bool{}
	items := make([]*models.Notification, 0, len(userIDs))
	for _, uid := range userIDs {
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		items = append(items, &models.Notification{
			UserID:     uid,
			Title:      notice.Title,
			Message:    notice.Message,
			Kind:       notice.Kind,
			Resource:   notice.Resource,
			ResourceID: notice.ResourceID,
		})
	}
	if len(items) == 0 {
		return nil, nil
	}
	if err := models.CreateNotifications(n.db, items); err != nil {
		logger.Warn("save notifications failed", zap.String("kind", notice.Kind), zap.Error(err))
		return nil, err
	}
	for _, item := range items {
		n.hub.SendToUser(item.UserID, NotificationEvent(item))
		if n.metrics != nil {
			n.metrics.RecordNotification(notice.Kind)
		}
	}
	return items, nil
}

// NotifyRoles 给指定角色的所有启用用户发送通知, exclude 通常是操作者本人
func (n *Notifier) NotifyRoles(roles []string, exclude string, notice Notice) ([]*models.Notification, error) {
	ids, err := models.ActiveUserIDsByRoles(n.db, roles...)
	if err != nil {
		logger.Warn("load notification recipients failed", zap.Strings("roles", roles), zap.Error(err))
		return nil, err
	}
	out := ids[:0]
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return n.NotifyUsers(out, notice)
}

func NotificationEvent(item *models.Notification) sse.Event {
	return sse.Event{
		ID:   strconv.FormatUint(uint64(item.ID), 10),
		Type: EventNotification,
		Data: item,
	}
}

// Replay 按 Last-Event-ID 补发断线期间的通知
func (n *Notifier) Replay(userID string) sse.ReplayFunc {
	return func(lastEventID string) []sse.Event {
		since, ok := models.ParseID(lastEventID)
		if !ok {
			return nil
		}
		items, err := models.ListNotifications(n.db, userID, models.NotificationQuery{SinceID: since, Limit: 100})
		if err != nil {
			logger.Warn("replay notifications failed", zap.String("user", userID), zap.Error(err))
			return nil
		}
		events := make([]sse.Event, 0, len(items))
		for i := range items {
			events = append(events, NotificationEvent(&items[i]))
		}
		return events
	}
}
