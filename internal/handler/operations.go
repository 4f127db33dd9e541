package handlers

import (
	"time"

	"CityWatch/internal/models"
	"CityWatch/pkg/errors"
	"CityWatch/pkg/response"

	"github.com/gin-gonic/gin"
)

type completePatrolForm struct {
	Observations  string `json:"observations"`
	IncidentCount *int   `json:"incidentCount" binding:"omitempty,gte=0"`
}

type respondForm struct {
	Response string `json:"response" binding:"required"`
	Status   string `json:"status" binding:"omitempty,oneof=reviewed resolved"`
}

type publicFeedbackForm struct {
	Subject  string `json:"subject" binding:"required,max=200"`
	Message  string `json:"message" binding:"required"`
	Rating   int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Category string `json:"category" binding:"max=64"`
}

func (h *Handlers) registerPatrolRoutes(r *gin.RouterGroup, obj *WebObject) {
	patrols := r.Group("patrol-logs")
	{
		patrols.POST("/:id/complete", models.PermissionRequired(models.ResPatrolLogs, models.ActionUpdate), h.handleCompletePatrol(obj))
	}
}

func (h *Handlers) registerAssetRoutes(r *gin.RouterGroup) {
	assets := r.Group("assets")
	{
		assets.PUT("/:id/assign", models.PermissionRequired(models.ResAssets, models.ActionUpdate), h.handleAssignAsset)
	}
}

func (h *Handlers) registerFeedbackRoutes(r *gin.RouterGroup) {
	feedback := r.Group("feedback")
	{
		feedback.PUT("/:id/respond", models.RoleRequired(models.RoleAdmin, models.RoleStaff), h.handleRespondFeedback)
	}
}

func (h *Handlers) registerScheduleRoutes(r *gin.RouterGroup) {
	schedules := r.Group("staff-schedules")
	{
		schedules.GET("/mine", h.handleMySchedules)
	}
}

// handleCompletePatrol 结束巡逻, 警员只能结束自己的记录
func (h *Handlers) handleCompletePatrol(obj *WebObject) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form completePatrolForm
		if c.Request.ContentLength != 0 && !bindJSON(c, &form) {
			return
		}
		vptr, err := h.loadScoped(c, obj, models.ActionUpdate)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		p := vptr.(*models.PatrolLog)
		if p.Status == models.PatrolCompleted {
			response.Fail(c, "patrol already completed", nil)
			return
		}
		now := time.Now()
		p.EndedAt = &now
		p.Status = models.PatrolCompleted
		if form.Observations != "" {
			p.Observations = form.Observations
		}
		if form.IncidentCount != nil {
			p.IncidentCount = *form.IncidentCount
		}
		if err := h.dbFor(c).Save(p).Error; err != nil {
			response.AbortWithError(c, errors.FromDB(err, "patrol log"))
			return
		}
		h.recordChanged(c, models.ResPatrolLogs, models.ActionUpdate, p)
		response.Success(c, "patrol completed", p)
	}
}

func (h *Handlers) handleAssignAsset(c *gin.Context) {
	var form assignForm
	if !bindJSON(c, &form) {
		return
	}
	var asset models.Asset
	if err := h.loadVisible(c, models.ResAssets, models.ActionUpdate, "", &asset); err != nil {
		response.AbortWithError(c, err)
		return
	}
	db := h.dbFor(c)
	if form.AssignedTo == "" {
		asset.AssignedTo = ""
		if asset.Status == models.AssetInUse {
			asset.Status = models.AssetAvailable
		}
	} else {
		if asset.Status == models.AssetRetired {
			response.Fail(c, "asset is retired", nil)
			return
		}
		user, err := models.ActiveUserWithRole(db, form.AssignedTo)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		asset.AssignedTo = user.IDString()
		asset.Status = models.AssetInUse
	}
	if err := db.Save(&asset).Error; err != nil {
		response.AbortWithError(c, errors.FromDB(err, "asset"))
		return
	}
	h.recordChanged(c, models.ResAssets, models.ActionUpdate, &asset)
	if asset.AssignedTo != "" {
		h.emit(c, models.SigAssetAssigned, &asset)
	}
	response.Success(c, "asset updated", &asset)
}

func (h *Handlers) handleRespondFeedback(c *gin.Context) {
	var form respondForm
	if !bindJSON(c, &form) {
		return
	}
	var fb models.Feedback
	if err := h.loadVisible(c, models.ResFeedback, models.ActionUpdate, "", &fb); err != nil {
		response.AbortWithError(c, err)
		return
	}
	now := time.Now()
	fb.Response = form.Response
	fb.RespondedBy = actorOf(c)
	fb.RespondedAt = &now
	fb.Status = form.Status
	if fb.Status == "" {
		fb.Status = models.FeedbackResolved
	}
	if err := h.dbFor(c).Save(&fb).Error; err != nil {
		response.AbortWithError(c, errors.FromDB(err, "feedback"))
		return
	}
	h.recordChanged(c, models.ResFeedback, models.ActionUpdate, &fb)
	h.emit(c, models.SigFeedbackResponded, &fb)
	response.Success(c, "feedback responded", &fb)
}

func (h *Handlers) handlePublicFeedback(c *gin.Context) {
	var form publicFeedbackForm
	if !bindJSON(c, &form) {
		return
	}
	fb := &models.Feedback{
		Subject:  form.Subject,
		Message:  form.Message,
		Rating:   form.Rating,
		Category: form.Category,
	}
	if err := h.dbFor(c).Create(fb).Error; err != nil {
		response.AbortWithError(c, errors.FromDB(err, "feedback"))
		return
	}
	h.recordChanged(c, models.ResFeedback, models.ActionCreate, fb)
	h.emit(c, models.SigFeedbackSubmitted, fb)
	response.Created(c, "feedback received", gin.H{"id": fb.ID})
}

// handleMySchedules 调用者尚未结束的排班
func (h *Handlers) handleMySchedules(c *gin.Context) {
	user := models.CurrentUser(c)
	items, err := models.UpcomingSchedules(h.dbFor(c), user.IDString(), time.Now(), 100)
	if err != nil {
		response.AbortWithError(c, errors.FromDB(err, "schedule"))
		return
	}
	response.Success(c, "ok", items)
}
