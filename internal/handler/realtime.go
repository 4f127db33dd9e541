package handlers

import (
	"CityWatch/internal/models"
	"CityWatch/pkg/errors"
	"CityWatch/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

func (h *Handlers) registerRealtimeRoutes(r *gin.RouterGroup) {
	rt := r.Group("realtime")
	{
		rt.GET("/stream", h.handleStream)

		rt.GET("/notifications", h.handleListNotifications)
		rt.POST("/notifications/read-all", h.handleReadAllNotifications)
		rt.POST("/notifications/:id/read", h.handleReadNotification)
		rt.DELETE("/notifications/:id", h.handleDeleteNotification)

		rt.GET("/online", models.RoleRequired(models.RoleAdmin), h.handleOnline)
	}
}

// handleStream 保持 SSE 连接, 同时加入角色分组
func (h *Handlers) handleStream(c *gin.Context) {
	user := models.CurrentUser(c)
	uid := user.IDString()
	h.hub.Serve(c, uid, []string{models.RoleGroup(user.Role)}, h.notifier.Replay(uid))
}

func (h *Handlers) handleListNotifications(c *gin.Context) {
	uid := actorOf(c)
	db := h.dbFor(c)
	q := models.NotificationQuery{
		SinceID:    cast.ToUint(c.Query("since")),
		UnreadOnly: cast.ToBool(c.Query("unread")),
		Limit:      cast.ToInt(c.Query("limit")),
	}
	items, err := models.ListNotifications(db, uid, q)
	if err != nil {
		response.AbortWithError(c, errors.FromDB(err, "notification"))
		return
	}
	unread, err := models.UnreadCount(db, uid)
	if err != nil {
		response.AbortWithError(c, errors.FromDB(err, "notification"))
		return
	}
	response.Success(c, "ok", gin.H{"items": items, "unreadCount": unread})
}

func (h *Handlers) handleReadNotification(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	if err := models.MarkNotificationRead(h.dbFor(c), actorOf(c), id); err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "notification read", gin.H{"id": id})
}

func (h *Handlers) handleReadAllNotifications(c *gin.Context) {
	n, err := models.MarkAllNotificationsRead(h.dbFor(c), actorOf(c))
	if err != nil {
		response.AbortWithError(c, errors.FromDB(err, "notification"))
		return
	}
	response.Success(c, "notifications read", gin.H{"updated": n})
}

func (h *Handlers) handleDeleteNotification(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.AbortWithError(c, err)
		return
	}
	if err := models.DeleteNotification(h.dbFor(c), actorOf(c), id); err != nil {
		response.AbortWithError(c, err)
		return
	}
	response.Success(c, "notification deleted", nil)
}

func (h *Handlers) handleOnline(c *gin.Context) {
	response.Success(c, "ok", gin.H{
		"users":   h.hub.Online(),
		"streams": h.hub.StreamCount(),
	})
}
