package handlers

import (
	"CityWatch/internal/models"
	"CityWatch/pkg/errors"
	"CityWatch/pkg/response"

	"github.com/gin-gonic/gin"
)

type assignForm struct {
	AssignedTo string `json:"assignedTo"`
}

type statusForm struct {
	Status string `json:"status" binding:"required"`
}

// publicReportForm 匿名报案
type publicReportForm struct {
	Title        string  `json:"title" binding:"required,max=200"`
	Description  string  `json:"description" binding:"required"`
	Category     string  `json:"category" binding:"max=64"`
	Location     string  `json:"location" binding:"max=255"`
	Latitude     float64 `json:"latitude" binding:"gte=-90,lte=90"`
	Longitude    float64 `json:"longitude" binding:"gte=-180,lte=180"`
	ContactPhone string  `json:"contactPhone" binding:"max=64"`
}

func (h *Handlers) registerCrimeRoutes(r *gin.RouterGroup) {
	crimes := r.Group("crimes", models.RoleRequired(models.RoleAdmin, models.RoleOfficer))
	{
		crimes.PUT("/:id/assign", h.handleAssignCrime)

		crimes.PUT("/:id/status", h.handleCrimeStatus)
	}
}

func (h *Handlers) handleAssignCrime(c *gin.Context) {
	var form assignForm
	if !bindJSON(c, &form) {
		return
	}
	var crime models.Crime
	if err := h.loadVisible(c, models.ResCrimes, models.ActionUpdate, "", &crime); err != nil {
		response.AbortWithError(c, err)
		return
	}
	db := h.dbFor(c)
	if _, err := models.ActiveUserWithRole(db, form.AssignedTo, models.RoleOfficer); err != nil {
		response.AbortWithError(c, err)
		return
	}
	crime.AssignedTo = form.AssignedTo
	if crime.Status == models.CrimeSubmitted {
		crime.Status = models.CrimeUnderReview
	}
	if err := db.Save(&crime).Error; err != nil {
		response.AbortWithError(c, errors.FromDB(err, "crime"))
		return
	}
	h.recordChanged(c, models.ResCrimes, models.ActionUpdate, &crime)
	h.emit(c, models.SigCrimeAssigned, &crime)
	response.Success(c, "crime assigned", &crime)
}

func (h *Handlers) handleCrimeStatus(c *gin.Context) {
	var form statusForm
	if !bindJSON(c, &form) {
		return
	}
	if !models.IsCrimeStatus(form.Status) {
		response.Fail(c, "validation failed", map[string]string{"status": "must be one of: submitted, under_review, investigating, resolved, rejected"})
		return
	}
	var crime models.Crime
	if err := h.loadVisible(c, models.ResCrimes, models.ActionUpdate, "", &crime); err != nil {
		response.AbortWithError(c, err)
		return
	}
	if crime.Status == form.Status {
		response.Success(c, "status unchanged", &crime)
		return
	}
	previous := crime.Status
	crime.Status = form.Status
	if err := h.dbFor(c).Save(&crime).Error; err != nil {
		response.AbortWithError(c, errors.FromDB(err, "crime"))
		return
	}
	h.recordChanged(c, models.ResCrimes, models.ActionUpdate, &crime)
	h.emit(c, models.SigCrimeStatusChanged, &crime, previous)
	response.Success(c, "status updated", &crime)
}

func (h *Handlers) handlePublicReport(c *gin.Context) {
	var form publicReportForm
	if !bindJSON(c, &form) {
		return
	}
	crime := &models.Crime{
		Title:        form.Title,
		Description:  form.Description,
		Category:     form.Category,
		Location:     form.Location,
		Latitude:     form.Latitude,
		Longitude:    form.Longitude,
		ContactPhone: form.ContactPhone,
		Anonymous:    true,
		Status:       models.CrimeSubmitted,
	}
	if err := h.dbFor(c).Create(crime).Error; err != nil {
		response.AbortWithError(c, errors.FromDB(err, "crime"))
		return
	}
	h.recordChanged(c, models.ResCrimes, models.ActionCreate, crime)
	h.emit(c, models.SigCrimeReported, crime)
	response.Created(c, "report received", gin.H{"id": crime.ID, "status": crime.Status})
}
