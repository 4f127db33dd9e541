package handlers

import (
	"time"

	"CityWatch/internal/models"
	"CityWatch/pkg/errors"
	"CityWatch/pkg/response"

	"github.com/gin-gonic/gin"
)

// integrationIncidentForm 外部调度系统上报的事件
type integrationIncidentForm struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description"`
	Type        string     `json:"type" binding:"max=64"`
	Location    string     `json:"location" binding:"max=255"`
	Latitude    float64    `json:"latitude" binding:"gte=-90,lte=90"`
	Longitude   float64    `json:"longitude" binding:"gte=-180,lte=180"`
	Severity    string     `json:"severity" binding:"omitempty,oneof=low medium high critical"`
	OccurredAt  *time.Time `json:"occurredAt"`
	Source      string     `json:"source" binding:"max=32"`
}

func (h *Handlers) registerIncidentRoutes(r *gin.RouterGroup) {
	incidents := r.Group("incidents", models.PermissionRequired(models.ResIncidents, models.ActionUpdate))
	{
		incidents.PUT("/:id/assign", h.handleAssignIncident)

		incidents.PUT("/:id/status", h.handleIncidentStatus)
	}
}

func (h *Handlers) handleAssignIncident(c *gin.Context) {
	var form assignForm
	if !bindJSON(c, &form) {
		return
	}
	var inc models.Incident
	if err := h.loadVisible(c, models.ResIncidents, models.ActionUpdate, "", &inc); err != nil {
		response.AbortWithError(c, err)
		return
	}
	db := h.dbFor(c)
	if _, err := models.ActiveUserWithRole(db, form.AssignedTo, models.RoleOfficer); err != nil {
		response.AbortWithError(c, err)
		return
	}
	inc.AssignedTo = form.AssignedTo
	if inc.Status == models.IncidentOpen {
		inc.Status = models.IncidentDispatched
	}
	if err := db.Save(&inc).Error; err != nil {
		response.AbortWithError(c, errors.FromDB(err, "incident"))
		return
	}
	h.recordChanged(c, models.ResIncidents, models.ActionUpdate, &inc)
	h.emit(c, models.SigIncidentAssigned, &inc)
	response.Success(c, "incident assigned", &inc)
}

// handleIncidentStatus 关闭时记录 resolvedAt, 重新打开时清空
func (h *Handlers) handleIncidentStatus(c *gin.Context) {
	var form statusForm
	if !bindJSON(c, &form) {
		return
	}
	if !models.IsIncidentStatus(form.Status) {
		response.Fail(c, "validation failed", map[string]string{"status": "must be one of: open, dispatched, in_progress, closed"})
		return
	}
	var inc models.Incident
	if err := h.loadVisible(c, models.ResIncidents, models.ActionUpdate, "", &inc); err != nil {
		response.AbortWithError(c, err)
		return
	}
	if inc.Status != form.Status {
		inc.Status = form.Status
		if form.Status == models.IncidentClosed {
			now := time.Now()
			inc.ResolvedAt = &now
		} else {
			inc.ResolvedAt = nil
		}
		if err := h.dbFor(c).Save(&inc).Error; err != nil {
			response.AbortWithError(c, errors.FromDB(err, "incident"))
			return
		}
		h.recordChanged(c, models.ResIncidents, models.ActionUpdate, &inc)
	}
	response.Success(c, "status updated", &inc)
}

func (h *Handlers) handleIntegrationIncident(c *gin.Context) {
	var form integrationIncidentForm
	if !bindJSON(c, &form) {
		return
	}
	source := form.Source
	if source == "" {
		source = "integration"
	}
	inc := &models.Incident{
		Title:       form.Title,
		Description: form.Description,
		Type:        form.Type,
		Location:    form.Location,
		Latitude:    form.Latitude,
		Longitude:   form.Longitude,
		Severity:    form.Severity,
		OccurredAt:  form.OccurredAt,
		ReportedBy:  source,
	}
	if err := h.dbFor(c).Create(inc).Error; err != nil {
		response.AbortWithError(c, errors.FromDB(err, "incident"))
		return
	}
	h.recordChanged(c, models.ResIncidents, models.ActionCreate, inc)
	h.emit(c, models.SigIncidentCreated, inc)
	response.Created(c, "incident created", inc)
}
